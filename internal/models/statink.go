package models

// MatchType classifies a raw match identifier.
type MatchType string

const (
	MatchTypeBattle MatchType = "battle"
	MatchTypeSalmon MatchType = "salmon"
)

// Flag is the target service's tri-state boolean; nil means unset.
type Flag string

const (
	FlagYes Flag = "yes"
	FlagNo  Flag = "no"
)

// FlagOf converts a bool to a Flag pointer.
func FlagOf(b bool) *Flag {
	f := FlagNo
	if b {
		f = FlagYes
	}
	return &f
}

// Rule is the target service's mode enum.
type Rule string

const (
	RuleNawabari Rule = "nawabari"
	RuleArea     Rule = "area"
	RuleHoko     Rule = "hoko"
	RuleYagura   Rule = "yagura"
	RuleAsari    Rule = "asari"
	RuleTriColor Rule = "tricolor"
)

// Lobby is the target service's lobby enum.
type Lobby string

const (
	LobbyRegular            Lobby = "regular"
	LobbyBankaraChallenge   Lobby = "bankara_challenge"
	LobbyBankaraOpen        Lobby = "bankara_open"
	LobbySplatFestChallenge Lobby = "splatfest_challenge"
	LobbySplatFestOpen      Lobby = "splatfest_open"
	LobbyPrivate            Lobby = "private"
	LobbyXMatch             Lobby = "xmatch"
)

// BattleResult is the target service's judgement enum.
type BattleResult string

const (
	ResultWin          BattleResult = "win"
	ResultLose         BattleResult = "lose"
	ResultDraw         BattleResult = "draw"
	ResultExemptedLose BattleResult = "exempted_lose"
)

// BattleBody is the versus-battle upload document. Field names match
// the target service's API exactly; pointer fields are omitted when
// unset so the service can distinguish "no data" from "zero".
type BattleBody struct {
	Test             *Flag          `json:"test,omitempty"`
	UUID             string         `json:"uuid"`
	Lobby            Lobby          `json:"lobby"`
	Rule             Rule           `json:"rule"`
	Stage            string         `json:"stage,omitempty"`
	Weapon           string         `json:"weapon,omitempty"`
	Result           BattleResult   `json:"result"`
	Knockout         *Flag          `json:"knockout,omitempty"`
	RankInTeam       *int           `json:"rank_in_team,omitempty"`
	Kill             *int           `json:"kill,omitempty"`
	Assist           *int           `json:"assist,omitempty"`
	KillOrAssist     *int           `json:"kill_or_assist,omitempty"`
	Death            *int           `json:"death,omitempty"`
	Special          *int           `json:"special,omitempty"`
	Inked            *int           `json:"inked,omitempty"`
	Medals           []string       `json:"medals"`
	OurTeamInked     *int           `json:"our_team_inked,omitempty"`
	TheirTeamInked   *int           `json:"their_team_inked,omitempty"`
	ThirdTeamInked   *int           `json:"third_team_inked,omitempty"`
	OurTeamPercent   *float64       `json:"our_team_percent,omitempty"`
	TheirTeamPercent *float64       `json:"their_team_percent,omitempty"`
	ThirdTeamPercent *float64       `json:"third_team_percent,omitempty"`
	OurTeamCount     *int           `json:"our_team_count,omitempty"`
	TheirTeamCount   *int           `json:"their_team_count,omitempty"`
	LevelBefore      *int           `json:"level_before,omitempty"`
	LevelAfter       *int           `json:"level_after,omitempty"`
	RankBefore       string         `json:"rank_before,omitempty"`
	RankBeforeSPlus  *int           `json:"rank_before_s_plus,omitempty"`
	RankBeforeExp    string         `json:"rank_before_exp,omitempty"`
	RankAfter        string         `json:"rank_after,omitempty"`
	RankAfterSPlus   *int           `json:"rank_after_s_plus,omitempty"`
	RankAfterExp     string         `json:"rank_after_exp,omitempty"`
	RankExpChange    *int           `json:"rank_exp_change,omitempty"`
	RankUpBattle     *Flag          `json:"rank_up_battle,omitempty"`
	ChallengeWin     *int           `json:"challenge_win,omitempty"`
	ChallengeLose    *int           `json:"challenge_lose,omitempty"`
	FestPower        *float64       `json:"fest_power,omitempty"`
	FestDragon       string         `json:"fest_dragon,omitempty"`
	CloutChange      *int           `json:"clout_change,omitempty"`
	OurTeamPlayers   []BattlePlayer `json:"our_team_players"`
	TheirTeamPlayers []BattlePlayer `json:"their_team_players"`
	ThirdTeamPlayers []BattlePlayer `json:"third_team_players,omitempty"`
	OurTeamColor     string         `json:"our_team_color,omitempty"`
	TheirTeamColor   string         `json:"their_team_color,omitempty"`
	ThirdTeamColor   string         `json:"third_team_color,omitempty"`
	OurTeamRole      string         `json:"our_team_role,omitempty"`
	TheirTeamRole    string         `json:"their_team_role,omitempty"`
	ThirdTeamRole    string         `json:"third_team_role,omitempty"`
	OurTeamTheme     string         `json:"our_team_theme,omitempty"`
	TheirTeamTheme   string         `json:"their_team_theme,omitempty"`
	ThirdTeamTheme   string         `json:"third_team_theme,omitempty"`
	XPowerBefore     *float64       `json:"x_power_before,omitempty"`
	XPowerAfter      *float64       `json:"x_power_after,omitempty"`
	Note             string         `json:"note,omitempty"`
	LinkURL          string         `json:"link_url,omitempty"`
	Agent            string         `json:"agent"`
	AgentVersion     string         `json:"agent_version"`
	Automated        Flag           `json:"automated"`
	StartAt          int64          `json:"start_at"`
	EndAt            int64          `json:"end_at"`
}

// BattlePlayer is one player entry in a battle upload document.
type BattlePlayer struct {
	Me             Flag   `json:"me"`
	RankInTeam     *int   `json:"rank_in_team,omitempty"`
	Name           string `json:"name,omitempty"`
	Number         string `json:"number,omitempty"`
	SplashtagTitle string `json:"splashtag_title,omitempty"`
	Weapon         string `json:"weapon,omitempty"`
	Inked          *int   `json:"inked,omitempty"`
	Kill           *int   `json:"kill,omitempty"`
	Assist         *int   `json:"assist,omitempty"`
	KillOrAssist   *int   `json:"kill_or_assist,omitempty"`
	Death          *int   `json:"death,omitempty"`
	Special        *int   `json:"special,omitempty"`
	Gears          Gears  `json:"gears"`
	Disconnected   Flag   `json:"disconnected"`
	Crown          *Flag  `json:"crown,omitempty"`
}

// Gears is a player's equipped gear set.
type Gears struct {
	Headgear *Gear `json:"headgear,omitempty"`
	Clothing *Gear `json:"clothing,omitempty"`
	Shoes    *Gear `json:"shoes,omitempty"`
}

// Gear is one equipped gear item with its abilities.
type Gear struct {
	PrimaryAbility     string   `json:"primary_ability,omitempty"`
	SecondaryAbilities []string `json:"secondary_abilities"`
}

// SalmonBody is the cooperative-run upload document.
type SalmonBody struct {
	UUID           string          `json:"uuid"`
	Private        *Flag           `json:"private,omitempty"`
	BigRun         *Flag           `json:"big_run,omitempty"`
	Stage          string          `json:"stage,omitempty"`
	DangerRate     *float64        `json:"danger_rate,omitempty"`
	ClearWaves     *int            `json:"clear_waves,omitempty"`
	FailReason     string          `json:"fail_reason,omitempty"`
	KingSmell      *int            `json:"king_smell,omitempty"`
	KingSalmonid   string          `json:"king_salmonid,omitempty"`
	ClearExtra     *Flag           `json:"clear_extra,omitempty"`
	TitleBefore    string          `json:"title_before,omitempty"`
	TitleExpBefore *int            `json:"title_exp_before,omitempty"`
	TitleAfter     string          `json:"title_after,omitempty"`
	TitleExpAfter  *int            `json:"title_exp_after,omitempty"`
	GoldenEggs     *int            `json:"golden_eggs,omitempty"`
	PowerEggs      *int            `json:"power_eggs,omitempty"`
	GoldScale      *int            `json:"gold_scale,omitempty"`
	SilverScale    *int            `json:"silver_scale,omitempty"`
	BronzeScale    *int            `json:"bronze_scale,omitempty"`
	JobPoint       *int            `json:"job_point,omitempty"`
	JobScore       *int            `json:"job_score,omitempty"`
	JobRate        *float64        `json:"job_rate,omitempty"`
	JobBonus       *int            `json:"job_bonus,omitempty"`
	Waves          []Wave          `json:"waves"`
	Players        []SalmonPlayer  `json:"players"`
	Bosses         map[string]Boss `json:"bosses,omitempty"`
	Note           string          `json:"note,omitempty"`
	LinkURL        string          `json:"link_url,omitempty"`
	Agent          string          `json:"agent"`
	AgentVersion   string          `json:"agent_version"`
	Automated      Flag            `json:"automated"`
	StartAt        *int64          `json:"start_at,omitempty"`
	EndAt          *int64          `json:"end_at,omitempty"`
}

// Wave is one wave of a cooperative run.
type Wave struct {
	Tide              string         `json:"tide,omitempty"`
	Event             string         `json:"event,omitempty"`
	GoldenQuota       *int           `json:"golden_quota,omitempty"`
	GoldenDelivered   *int           `json:"golden_delivered,omitempty"`
	GoldenAppearances *int           `json:"golden_appearances,omitempty"`
	SpecialUses       map[string]int `json:"special_uses,omitempty"`
}

// Boss is one boss tally in a cooperative run.
type Boss struct {
	Appearances  *int `json:"appearances,omitempty"`
	Defeated     *int `json:"defeated,omitempty"`
	DefeatedByMe *int `json:"defeated_by_me,omitempty"`
}

// SalmonPlayer is one squad member in a cooperative run.
type SalmonPlayer struct {
	Me             Flag     `json:"me"`
	Name           string   `json:"name,omitempty"`
	Number         string   `json:"number,omitempty"`
	SplashtagTitle string   `json:"splashtag_title,omitempty"`
	Uniform        string   `json:"uniform,omitempty"`
	Special        string   `json:"special,omitempty"`
	Weapons        []string `json:"weapons,omitempty"`
	GoldenEggs     *int     `json:"golden_eggs,omitempty"`
	GoldenAssist   *int     `json:"golden_assist,omitempty"`
	PowerEggs      *int     `json:"power_eggs,omitempty"`
	Rescue         *int     `json:"rescue,omitempty"`
	Rescued        *int     `json:"rescued,omitempty"`
	DefeatBoss     *int     `json:"defeat_boss,omitempty"`
	Disconnected   Flag     `json:"disconnected,omitempty"`
}

// Int returns a pointer to v; small helper for optional fields.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
