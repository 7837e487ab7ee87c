package transform

import (
	"strings"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/battleid"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

var waveEventNames = map[string]string{
	"1": "rush",
	"2": "goldie_seeking",
	"3": "the_griller",
	"4": "the_mothership",
	"5": "fog",
	"6": "cohock_charge",
	"7": "giant_tornado",
	"8": "mudmouth_eruption",
}

var specialNames = map[string]string{
	"20006": "nicedama",
	"20007": "hopsonar",
	"20009": "megaphone51",
	"20010": "jetpack",
	"20012": "kanitank",
	"20013": "sameride",
	"20014": "tripletornado",
}

var bossNames = map[string]string{
	"4":  "bakudan",
	"5":  "katapad",
	"6":  "teppan",
	"7":  "hebi",
	"8":  "tower",
	"9":  "mogura",
	"10": "koumori",
	"11": "hashira",
	"12": "diver",
	"13": "tekkyu",
	"14": "nabebuta",
	"15": "kin_shake",
	"17": "grill",
	"20": "doro_shake",
}

func waveEventName(id string) string {
	if name, ok := waveEventNames[id]; ok {
		return name
	}
	return id
}

func specialName(id string) string {
	if name, ok := specialNames[id]; ok {
		return name
	}
	return id
}

func bossName(id string) string {
	if name, ok := bossNames[id]; ok {
		return name
	}
	return id
}

// titleExpAfterStageChange is the reset grade point the service
// assumes when a rotation moves to a new stage.
const titleExpAfterStageChange = 40

// BuildSalmonBody converts one cooperative-run detail document plus
// its listing group into an upload body.
func BuildSalmonBody(rawDetail string, rawGroup string, userLang string, weaponDict map[string]string, agentName string, agentVersion string) (*models.SalmonBody, error) {
	if weaponDict == nil {
		weaponDict = map[string]string{}
	}
	root, err := parseJSON(rawDetail)
	if err != nil {
		return nil, err
	}
	groupWrapper, err := parseJSON(rawGroup)
	if err != nil {
		return nil, err
	}

	job := root.get("data", "coopHistoryDetail")
	if !job.exists() {
		return nil, errors.NewMissingFieldError("salmon-detail", "data.coopHistoryDetail")
	}

	uuid, _, err := battleid.Compute(job.get("id").str())
	if err != nil {
		return nil, err
	}

	body := &models.SalmonBody{
		UUID:         uuid,
		Waves:        []models.Wave{},
		Players:      []models.SalmonPlayer{},
		Bosses:       map[string]models.Boss{},
		Agent:        agentName,
		AgentVersion: agentVersion,
		Automated:    models.FlagYes,
	}

	if mode := groupWrapper.get("mode").str(); strings.HasPrefix(mode, "PRIVATE_") {
		body.Private = models.FlagOf(true)
	}
	group := groupWrapper.get("historyDetails", "nodes")

	if rate := job.get("dangerRate").floatPtr(); rate != nil {
		body.DangerRate = models.Float(*rate * 100)
	}
	body.KingSmell = job.get("smellMeter").intPtr()

	fillWaveOutcome(job, body)
	fillKingResult(job, body)

	currentStageID := job.get("coopStage", "id").str()
	if body.Private == nil {
		fillTitleProgression(job, group, currentStageID, body)
	}

	fillEggCounts(job, body)

	if scale := job.get("scale"); scale.exists() {
		body.GoldScale = scale.get("gold").intPtr()
		body.SilverScale = scale.get("silver").intPtr()
		body.BronzeScale = scale.get("bronze").intPtr()
	}

	body.JobScore = job.get("jobScore").intPtr()
	body.JobRate = job.get("jobRate").floatPtr()
	body.JobBonus = job.get("jobBonus").intPtr()
	body.JobPoint = job.get("jobPoint").intPtr()

	fillWaves(job, body)
	fillSquad(job, body, userLang, weaponDict)
	fillBosses(job, body)

	if playedAt, err := time.Parse(time.RFC3339, job.get("playedTime").str()); err == nil {
		body.StartAt = models.Int64(playedAt.Unix())
	}

	bigRun := job.get("rule").str() == "BIG_RUN"
	body.BigRun = models.FlagOf(bigRun)
	if !bigRun {
		body.Stage = commonID(job.get("coopStage", "id"))
	}

	return body, nil
}

// fillWaveOutcome derives cleared-wave count and, for failed runs, the
// fail reason: a wipe-out still meets the quota on its last wave, a
// time-out does not.
func fillWaveOutcome(job node, body *models.SalmonBody) {
	resultWave := job.get("resultWave").intPtr()
	if resultWave == nil {
		return
	}

	cleared := *resultWave - 1
	if cleared == -1 {
		cleared = 3
	}
	if cleared < 0 {
		return
	}
	body.ClearWaves = models.Int(cleared)
	if cleared == 3 {
		return
	}

	lastWave := job.get("waveResults").index(cleared)
	delivered := lastWave.get("teamDeliverCount").intPtr()
	quota := lastWave.get("deliverNorm").intPtr()
	if delivered == nil || quota == nil {
		return
	}
	if *delivered >= *quota {
		body.FailReason = "wipe_out"
	} else {
		body.FailReason = "time_limit"
	}
}

func fillKingResult(job node, body *models.SalmonBody) {
	bossResult := job.get("bossResult")
	if !bossResult.exists() {
		return
	}
	body.KingSalmonid = commonID(bossResult.get("boss", "id"))
	defeated := bossResult.get("hasDefeatBoss").boolPtr()
	body.ClearExtra = models.FlagOf(defeated != nil && *defeated)
}

// fillTitleProgression recovers title-before from the previous run in
// the listing group. A stage change between runs resets grade points
// to the service's baseline.
func fillTitleProgression(job node, group node, currentStageID string, body *models.SalmonBody) {
	if afterGrade := job.get("afterGrade"); afterGrade.exists() {
		body.TitleAfter = commonID(afterGrade.get("id"))
		body.TitleExpAfter = job.get("afterGradePoint").intPtr()
	}

	prevJobID := job.get("previousHistoryDetail", "id").str()
	if prevJobID != "" {
		for _, prevJob := range group.arr() {
			if prevJob.get("id").str() != prevJobID {
				continue
			}
			prevStageID := prevJob.get("coopStage", "id").str()
			if prevStageID != "" && prevStageID != currentStageID {
				body.TitleBefore = body.TitleAfter
				body.TitleExpBefore = models.Int(titleExpAfterStageChange)
			} else if prevGrade := prevJob.get("afterGrade"); prevGrade.exists() {
				body.TitleBefore = commonID(prevGrade.get("id"))
				body.TitleExpBefore = prevJob.get("afterGradePoint").intPtr()
			}
		}
	}

	if body.TitleBefore == "" {
		body.TitleBefore = body.TitleAfter
	}
	if body.TitleExpBefore == nil {
		body.TitleExpBefore = body.TitleExpAfter
	}
}

func fillEggCounts(job node, body *models.SalmonBody) {
	powerEggs := job.get("myResult", "deliverCount").intOr(0)
	for _, member := range job.get("memberResults").arr() {
		powerEggs += member.get("deliverCount").intOr(0)
	}

	goldenEggs := 0
	for _, wave := range job.get("waveResults").arr() {
		goldenEggs += wave.get("teamDeliverCount").intOr(0)
	}

	body.GoldenEggs = models.Int(goldenEggs)
	body.PowerEggs = models.Int(powerEggs)
}

func fillWaves(job node, body *models.SalmonBody) {
	for _, wave := range job.get("waveResults").arr() {
		info := models.Wave{
			GoldenQuota:       wave.get("deliverNorm").intPtr(),
			GoldenDelivered:   wave.get("teamDeliverCount").intPtr(),
			GoldenAppearances: wave.get("goldenPopCount").intPtr(),
		}

		switch wave.get("waterLevel").intOr(1) {
		case 0:
			info.Tide = "low"
		case 2:
			info.Tide = "high"
		default:
			info.Tide = "normal"
		}

		if eventID := commonID(wave.get("eventWave", "id")); eventID != "" {
			info.Event = waveEventName(eventID)
		}

		uses := map[string]int{}
		for _, special := range wave.get("specialWeapons").arr() {
			specialID := commonID(special.get("id"))
			if specialID == "" {
				continue
			}
			uses[specialName(specialID)]++
		}
		info.SpecialUses = uses

		body.Waves = append(body.Waves, info)
	}
}

func fillSquad(job node, body *models.SalmonBody, userLang string, weaponDict map[string]string) {
	squad := append([]node{job.get("myResult")}, job.get("memberResults").arr()...)
	for idx, member := range squad {
		if !member.exists() {
			continue
		}
		player := models.SalmonPlayer{
			Me:             models.FlagNo,
			Name:           member.get("player", "name").str(),
			Number:         member.get("player", "nameId").str(),
			SplashtagTitle: member.get("player", "byname").str(),
			Uniform:        commonID(member.get("player", "uniform", "id")),
			GoldenEggs:     member.get("goldenDeliverCount").intPtr(),
			GoldenAssist:   member.get("goldenAssistCount").intPtr(),
			PowerEggs:      member.get("deliverCount").intPtr(),
			Rescue:         member.get("rescueCount").intPtr(),
			Rescued:        member.get("rescuedCount").intPtr(),
			DefeatBoss:     member.get("defeatEnemyCount").intPtr(),
			Weapons:        []string{},
		}
		if idx == 0 {
			player.Me = models.FlagYes
		}

		// a member with all-zero counts was disconnected for the
		// whole run
		if isZero(player.GoldenEggs) && isZero(player.PowerEggs) &&
			isZero(player.Rescue) && isZero(player.Rescued) && isZero(player.DefeatBoss) {
			player.Disconnected = models.FlagYes
		}

		if specialWeapon := member.get("specialWeapon"); specialWeapon.exists() {
			specialID := specialWeapon.get("weaponId").numStr()
			if specialID == "" {
				specialID = commonID(specialWeapon.get("id"))
			}
			if specialID != "" {
				player.Special = specialName(specialID)
			}
		}

		for _, weapon := range member.get("weapons").arr() {
			name := weapon.get("name").str()
			if key, ok := weaponDict[dictKey(userLang, name)]; ok {
				player.Weapons = append(player.Weapons, key)
			}
		}

		body.Players = append(body.Players, player)
	}
}

func fillBosses(job node, body *models.SalmonBody) {
	for _, jBoss := range job.get("enemyResults").arr() {
		bossID := commonID(jBoss.get("enemy", "id"))
		if bossID == "" {
			bossID = "unknown"
		}
		body.Bosses[bossName(bossID)] = models.Boss{
			Appearances:  jBoss.get("popCount").intPtr(),
			Defeated:     jBoss.get("teamDefeatCount").intPtr(),
			DefeatedByMe: jBoss.get("defeatCount").intPtr(),
		}
	}
}

func isZero(v *int) bool {
	return v != nil && *v == 0
}
