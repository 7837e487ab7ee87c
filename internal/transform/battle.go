package transform

import (
	"fmt"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/battleid"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// BuildBattleBody converts one versus-battle detail document plus its
// listing group into an upload body. A nil body with nil error means
// the battle's rule is not supported yet and the record should be
// skipped, not failed.
func BuildBattleBody(rawDetail string, rawGroup string, userLang string, gearDict map[string]string, agentName string, agentVersion string) (*models.BattleBody, error) {
	if gearDict == nil {
		gearDict = map[string]string{}
	}
	root, err := parseJSON(rawDetail)
	if err != nil {
		return nil, err
	}
	group, err := parseJSON(rawGroup)
	if err != nil {
		return nil, err
	}

	battle := root.get("data", "vsHistoryDetail")
	if !battle.exists() {
		return nil, errors.NewMissingFieldError("battle-detail", "data.vsHistoryDetail")
	}

	uuid, _, err := battleid.Compute(battle.get("id").str())
	if err != nil {
		return nil, err
	}

	rule, supported := extractRule(battle)
	if !supported {
		return nil, nil
	}

	lobby, err := extractLobby(battle)
	if err != nil {
		return nil, err
	}

	result, err := extractResult(battle)
	if err != nil {
		return nil, err
	}

	body := &models.BattleBody{
		UUID:         uuid,
		Rule:         rule,
		Lobby:        lobby,
		Stage:        extractStage(battle),
		Result:       result,
		Medals:       []string{},
		Agent:        agentName,
		AgentVersion: agentVersion,
		Automated:    models.FlagYes,
	}

	fillSelfPlayer(battle, body)

	startAt, err := time.Parse(time.RFC3339, battle.get("playedTime").str())
	if err != nil {
		return nil, errors.NewMissingFieldError("battle-detail", "playedTime")
	}
	body.StartAt = startAt.Unix()
	body.EndAt = body.StartAt + int64(battle.get("duration").intOr(300))

	fillScoreboard(battle, body, userLang, gearDict)
	fillSplatfest(battle, body)
	fillModeData(battle, group, body)
	fillMedals(battle, body)

	return body, nil
}

func extractRule(battle node) (models.Rule, bool) {
	switch battle.get("vsRule", "rule").str() {
	case "TURF_WAR":
		return models.RuleNawabari, true
	case "AREA":
		return models.RuleArea, true
	case "LOFT":
		return models.RuleYagura, true
	case "GOAL":
		return models.RuleHoko, true
	case "CLAM":
		return models.RuleAsari, true
	case "TRI_COLOR":
		return models.RuleTriColor, true
	default:
		return "", false
	}
}

func extractLobby(battle node) (models.Lobby, error) {
	mode := battle.get("vsMode", "mode").str()
	switch mode {
	case "REGULAR":
		return models.LobbyRegular, nil
	case "BANKARA":
		switch sub := battle.get("bankaraMatch", "mode").str(); sub {
		case "OPEN":
			return models.LobbyBankaraOpen, nil
		case "CHALLENGE":
			return models.LobbyBankaraChallenge, nil
		default:
			return "", errors.NewUnknownEnumError("bankaraMatch.mode", sub)
		}
	case "PRIVATE":
		return models.LobbyPrivate, nil
	case "FEST":
		modeID, err := decodeNumericID(battle.get("vsMode", "id").str())
		if err != nil {
			return "", errors.NewUnknownEnumError("vsMode.id", battle.get("vsMode", "id").str())
		}
		switch modeID {
		case 6, 8: // open or tricolor
			return models.LobbySplatFestOpen, nil
		case 7:
			return models.LobbySplatFestChallenge, nil
		default:
			return "", errors.NewUnknownEnumError("vsMode.id", fmt.Sprintf("%d", modeID))
		}
	case "X_MATCH":
		return models.LobbyXMatch, nil
	default:
		return "", errors.NewUnknownEnumError("vsMode.mode", mode)
	}
}

func extractResult(battle node) (models.BattleResult, error) {
	judgement := battle.get("judgement").str()
	switch judgement {
	case "WIN":
		return models.ResultWin, nil
	case "LOSE", "DEEMED_LOSE":
		return models.ResultLose, nil
	case "EXEMPTED_LOSE":
		return models.ResultExemptedLose, nil
	case "DRAW":
		return models.ResultDraw, nil
	default:
		return "", errors.NewUnknownEnumError("judgement", judgement)
	}
}

var stageAliases = map[int]string{
	1:  "yunohana",
	2:  "gonzui",
	3:  "yagara",
	4:  "mategai",
	6:  "namero",
	7:  "kusaya",
	9:  "hirame",
	10: "masaba",
	11: "kinmedai",
	12: "mahimahi",
	13: "amabi",
	14: "chozame",
	15: "zatou",
	16: "sumeshi",
}

func extractStage(battle node) string {
	stageID, err := decodeNumericID(battle.get("vsStage", "id").str())
	if err != nil {
		return ""
	}
	if alias, ok := stageAliases[stageID]; ok {
		return alias
	}
	// unknown stages upload as their numeric alias
	return fmt.Sprintf("%d", stageID)
}

// parseWeaponKey decodes a weapon id. Empty result means the weapon is
// a variant the target service rejects, so the field stays unset.
func parseWeaponKey(rawID string) string {
	id, err := battleid.ParseCommonID(rawID)
	if err != nil {
		return ""
	}
	if len(id) == 5 && id[0] == '2' && id[2:] == "900" {
		return ""
	}
	return id
}

func fillSelfPlayer(battle node, body *models.BattleBody) {
	for i, player := range battle.get("myTeam", "players").arr() {
		isMe := player.get("isMyself").boolPtr()
		if isMe == nil || !*isMe {
			continue
		}
		body.Weapon = parseWeaponKey(player.get("weapon", "id").str())
		body.Inked = player.get("paint").intPtr()
		body.RankInTeam = models.Int(i + 1)
		if res := player.get("result"); res.exists() {
			body.KillOrAssist = res.get("kill").intPtr()
			body.Assist = res.get("assist").intPtr()
			if body.KillOrAssist != nil && body.Assist != nil {
				body.Kill = models.Int(*body.KillOrAssist - *body.Assist)
			}
			body.Death = res.get("death").intPtr()
			body.Special = res.get("special").intPtr()
		}
		break
	}
}

func fillScoreboard(battle node, body *models.BattleBody, userLang string, gearDict map[string]string) {
	body.OurTeamColor = colorHex(battle.get("myTeam", "color"))
	for i, player := range battle.get("myTeam", "players").arr() {
		body.OurTeamPlayers = append(body.OurTeamPlayers, buildPlayer(player, i, userLang, gearDict))
	}

	otherTeams := battle.get("otherTeams")
	theirTeam := otherTeams.index(0)
	body.TheirTeamColor = colorHex(theirTeam.get("color"))
	for i, player := range theirTeam.get("players").arr() {
		body.TheirTeamPlayers = append(body.TheirTeamPlayers, buildPlayer(player, i, userLang, gearDict))
	}

	if body.Rule == models.RuleTriColor {
		if thirdTeam := otherTeams.index(1); thirdTeam.exists() {
			body.ThirdTeamColor = colorHex(thirdTeam.get("color"))
			for i, player := range thirdTeam.get("players").arr() {
				body.ThirdTeamPlayers = append(body.ThirdTeamPlayers, buildPlayer(player, i, userLang, gearDict))
			}
		}
	}
}

func buildPlayer(playerJ node, idx int, userLang string, gearDict map[string]string) models.BattlePlayer {
	player := models.BattlePlayer{
		Me:             models.FlagNo,
		Name:           playerJ.get("name").str(),
		Number:         playerJ.get("nameId").str(),
		SplashtagTitle: playerJ.get("byname").str(),
		Weapon:         parseWeaponKey(playerJ.get("weapon", "id").str()),
		Inked:          playerJ.get("paint").intPtr(),
		RankInTeam:     models.Int(idx + 1),
	}
	if isMe := playerJ.get("isMyself").boolPtr(); isMe != nil && *isMe {
		player.Me = models.FlagYes
	}

	if res := playerJ.get("result"); res.exists() {
		player.KillOrAssist = res.get("kill").intPtr()
		player.Assist = res.get("assist").intPtr()
		if player.KillOrAssist != nil && player.Assist != nil {
			player.Kill = models.Int(*player.KillOrAssist - *player.Assist)
		}
		player.Death = res.get("death").intPtr()
		player.Special = res.get("special").intPtr()
		player.Disconnected = models.FlagNo
	} else {
		player.Disconnected = models.FlagYes
	}

	if crown := playerJ.get("crown").boolPtr(); crown != nil {
		player.Crown = models.FlagOf(*crown)
	}

	player.Gears = models.Gears{
		Headgear: buildGear(playerJ.get("headGear"), userLang, gearDict),
		Clothing: buildGear(playerJ.get("clothingGear"), userLang, gearDict),
		Shoes:    buildGear(playerJ.get("shoesGear"), userLang, gearDict),
	}

	return player
}

// buildGear resolves localized ability names against the key
// dictionary. Names missing from the dictionary are dropped rather
// than guessed.
func buildGear(gearJ node, userLang string, gearDict map[string]string) *models.Gear {
	if !gearJ.exists() {
		return nil
	}
	gear := &models.Gear{SecondaryAbilities: []string{}}

	if primary := gearJ.get("primaryGearPower", "name").str(); primary != "" {
		if key, ok := gearDict[dictKey(userLang, primary)]; ok {
			gear.PrimaryAbility = key
		}
	}
	for _, item := range gearJ.get("additionalGearPowers").arr() {
		ability := item.get("name").str()
		if ability == "" {
			continue
		}
		if key, ok := gearDict[dictKey(userLang, ability)]; ok {
			gear.SecondaryAbilities = append(gear.SecondaryAbilities, key)
		}
	}
	return gear
}

func fillSplatfest(battle node, body *models.BattleBody) {
	if body.Lobby != models.LobbySplatFestChallenge && body.Lobby != models.LobbySplatFestOpen {
		return
	}

	festMatch := battle.get("festMatch")
	switch festMatch.get("dragonMatchType").str() {
	case "DECUPLE":
		body.FestDragon = "10x"
	case "DRAGON":
		body.FestDragon = "100x"
	case "DOUBLE_DRAGON":
		body.FestDragon = "333x"
	}
	body.CloutChange = festMatch.get("contribution").intPtr()
	if body.Lobby == models.LobbySplatFestChallenge {
		body.FestPower = festMatch.get("myFestPower").floatPtr()
	}

	body.OurTeamTheme = battle.get("myTeam", "festTeamName").str()

	otherTeams := battle.get("otherTeams")
	theirTeam := otherTeams.index(0)
	body.TheirTeamTheme = theirTeam.get("festTeamName").str()

	if body.Rule == models.RuleTriColor {
		body.OurTeamRole = triColorRole(battle.get("myTeam", "tricolorRole").str())
		body.TheirTeamRole = triColorRole(theirTeam.get("tricolorRole").str())
		if thirdTeam := otherTeams.index(1); thirdTeam.exists() {
			body.ThirdTeamTheme = thirdTeam.get("festTeamName").str()
			body.ThirdTeamRole = triColorRole(thirdTeam.get("tricolorRole").str())
		}
	}
}

func triColorRole(rawRole string) string {
	if rawRole == "" {
		return ""
	}
	if rawRole == "DEFENSE" {
		return "defender"
	}
	return "attacker"
}

func fillModeData(battle node, group node, body *models.BattleBody) {
	myResult := battle.get("myTeam", "result")
	theirResult := battle.get("otherTeams").index(0).get("result")

	switch body.Lobby {
	case models.LobbyRegular, models.LobbySplatFestChallenge, models.LobbySplatFestOpen:
		if ratio := myResult.get("paintRatio").floatPtr(); ratio != nil {
			body.OurTeamPercent = models.Float(*ratio * 100)
		}
		if ratio := theirResult.get("paintRatio").floatPtr(); ratio != nil {
			body.TheirTeamPercent = models.Float(*ratio * 100)
		}
		if body.Rule == models.RuleTriColor {
			if ratio := battle.get("otherTeams").index(1).get("result", "paintRatio").floatPtr(); ratio != nil {
				body.ThirdTeamPercent = models.Float(*ratio * 100)
			}
			body.ThirdTeamInked = models.Int(sumInked(body.ThirdTeamPlayers))
		}
		body.OurTeamInked = models.Int(sumInked(body.OurTeamPlayers))
		body.TheirTeamInked = models.Int(sumInked(body.TheirTeamPlayers))

	case models.LobbyPrivate:
		body.Knockout = knockoutFlag(battle)
		body.OurTeamCount = myResult.get("score").intPtr()
		body.TheirTeamCount = theirResult.get("score").intPtr()
		if ratio := myResult.get("paintRatio").floatPtr(); ratio != nil {
			body.OurTeamPercent = models.Float(*ratio * 100)
		}
		if ratio := theirResult.get("paintRatio").floatPtr(); ratio != nil {
			body.TheirTeamPercent = models.Float(*ratio * 100)
		}

	case models.LobbyBankaraChallenge, models.LobbyBankaraOpen:
		body.OurTeamCount = myResult.get("score").intPtr()
		body.TheirTeamCount = theirResult.get("score").intPtr()
		body.Knockout = knockoutFlag(battle)
		body.RankExpChange = battle.get("bankaraMatch", "earnedUdemaePoint").intPtr()
		fillBankaraRank(battle, group, body)

	case models.LobbyXMatch:
		body.OurTeamCount = myResult.get("score").intPtr()
		body.TheirTeamCount = theirResult.get("score").intPtr()
		body.Knockout = knockoutFlag(battle)
		if power := battle.get("xMatch", "lastXPower").floatPtr(); power != nil {
			body.XPowerBefore = power
		}
		fillXMeasurement(battle, group, body)
	}
}

func knockoutFlag(battle node) *models.Flag {
	knockout := battle.get("knockout")
	if !knockout.exists() || knockout.str() == "NEITHER" {
		return models.FlagOf(false)
	}
	return models.FlagOf(true)
}

func sumInked(players []models.BattlePlayer) int {
	total := 0
	for _, p := range players {
		if p.Inked != nil {
			total += *p.Inked
		}
	}
	return total
}

// fillBankaraRank recovers rank-before/after from the listing group.
// The group lists battles newest-first; only the newest entry carries
// the challenge outcome, every other entry keeps its listed rank.
func fillBankaraRank(battle node, group node, body *models.BattleBody) {
	battleID := battle.get("id").str()
	for i, child := range group.get("historyDetails", "nodes").arr() {
		if child.get("id").str() != battleID {
			continue
		}

		before, beforeSPlus := splitRank(child.get("udemae").str())
		body.RankBefore = before
		body.RankBeforeSPlus = beforeSPlus
		body.RankAfter = before
		body.RankAfterSPlus = beforeSPlus

		challenge := group.get("bankaraMatchChallenge")
		if challenge.exists() {
			if up := challenge.get("rank_up_battle").boolPtr(); up != nil && *up {
				body.RankUpBattle = models.FlagOf(true)
			} else {
				body.RankUpBattle = models.FlagOf(false)
			}

			if after := challenge.get("udemaeAfter").str(); after != "" && i == 0 {
				body.RankAfter, body.RankAfterSPlus = splitRank(after)
			}

			if i == 0 {
				body.ChallengeWin = challenge.get("winCount").intPtr()
				body.ChallengeLose = challenge.get("loseCount").intPtr()
				if body.RankExpChange == nil {
					body.RankExpChange = challenge.get("earnedUdemaePoint").intPtr()
				}
			}
		}
		return
	}
}

func fillXMeasurement(battle node, group node, body *models.BattleBody) {
	battleID := battle.get("id").str()
	for i, child := range group.get("historyDetails", "nodes").arr() {
		if child.get("id").str() != battleID {
			continue
		}
		if i != 0 {
			return
		}
		measurement := group.get("xMatchMeasurement")
		if !measurement.exists() {
			return
		}
		body.XPowerAfter = measurement.get("xPowerAfter").floatPtr()
		body.ChallengeWin = measurement.get("winCount").intPtr()
		body.ChallengeLose = measurement.get("loseCount").intPtr()
		return
	}
}

// splitRank splits a rank string like "s+12" into its letter part and
// optional numeric suffix.
func splitRank(udemae string) (string, *int) {
	if udemae == "" {
		return "", nil
	}
	lower := make([]byte, 0, len(udemae))
	for i := 0; i < len(udemae); i++ {
		c := udemae[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower = append(lower, c)
	}

	digitStart := -1
	for i := 0; i < len(lower); i++ {
		if lower[i] >= '0' && lower[i] <= '9' {
			digitStart = i
			break
		}
	}
	if digitStart < 0 {
		return string(lower), nil
	}

	digitEnd := digitStart
	for digitEnd < len(lower) && lower[digitEnd] >= '0' && lower[digitEnd] <= '9' {
		digitEnd++
	}
	n := 0
	for i := digitStart; i < digitEnd; i++ {
		n = n*10 + int(lower[i]-'0')
	}
	return string(lower[:digitStart]), &n
}

func fillMedals(battle node, body *models.BattleBody) {
	for _, award := range battle.get("awards").arr() {
		if name := award.get("name").str(); name != "" {
			body.Medals = append(body.Medals, name)
		}
	}
}
