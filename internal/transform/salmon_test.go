package transform

import (
	"fmt"
	"testing"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/models"
)

const (
	testCoopID   = "Q29vcEhpc3RvcnlEZXRhaWwtdS1xc2w1ZmdmeGdrd25vbjZ0bW5tbToyMDIyMTExNVQxMjEzMzdfOGEyYzcxYTItNGYyNy00ZmE1LWExNGQtYzRjNmEyNWQ5MjFi"
	testCoopUUID = "526fd8d3-9032-59be-b2f1-2587d93e7a87"
)

func salmonDoc(rule string, resultWave int, extra string) string {
	if extra != "" {
		extra = "," + extra
	}
	return fmt.Sprintf(`{
		"data": {
			"coopHistoryDetail": {
				"id": %q,
				"rule": %q,
				"resultWave": %d,
				"playedTime": "2022-11-15T12:13:37Z",
				"dangerRate": 1.5,
				"smellMeter": 3,
				"coopStage": {"id": "Q29vcFN0YWdlLTc="},
				"afterGrade": {"id": "Q29vcEdyYWRlLTg="},
				"afterGradePoint": 130,
				"previousHistoryDetail": {"id": "prev-1"},
				"scale": {"gold": 1, "silver": 2, "bronze": 3},
				"jobPoint": 340,
				"jobScore": 115,
				"jobRate": 2.0,
				"jobBonus": 110,
				"myResult": {
					"player": {
						"name": "alpha",
						"nameId": "1111",
						"byname": "profreshional",
						"uniform": {"id": "Q29vcFVuaWZvcm0tMQ=="}
					},
					"specialWeapon": {"weaponId": 20006},
					"weapons": [{"name": "Splattershot"}, {"name": "Mystery Weapon"}],
					"deliverCount": 1000,
					"goldenDeliverCount": 20,
					"goldenAssistCount": 2,
					"rescueCount": 1,
					"rescuedCount": 0,
					"defeatEnemyCount": 12
				},
				"memberResults": [
					{
						"player": {"name": "ghost", "nameId": "2222", "byname": "absent"},
						"deliverCount": 0,
						"goldenDeliverCount": 0,
						"goldenAssistCount": 0,
						"rescueCount": 0,
						"rescuedCount": 0,
						"defeatEnemyCount": 0
					}
				],
				"waveResults": [
					{
						"waterLevel": 0,
						"deliverNorm": 22,
						"teamDeliverCount": 25,
						"goldenPopCount": 50,
						"eventWave": {"id": "Q29vcEV2ZW50V2F2ZS0x"},
						"specialWeapons": [
							{"id": "U3BlY2lhbFdlYXBvbi0yMDAwNg=="},
							{"id": "U3BlY2lhbFdlYXBvbi0yMDAwNg=="},
							{"id": "U3BlY2lhbFdlYXBvbi0yMDAxMg=="}
						]
					},
					{
						"deliverNorm": 24,
						"teamDeliverCount": 30,
						"goldenPopCount": 55
					},
					{
						"waterLevel": 2,
						"deliverNorm": 26,
						"teamDeliverCount": 20,
						"goldenPopCount": 60
					}
				],
				"enemyResults": [
					{
						"enemy": {"id": "Q29vcEVuZW15LTQ="},
						"popCount": 10,
						"teamDefeatCount": 8,
						"defeatCount": 2
					},
					{
						"enemy": {"id": "Q29vcEVuZW15LTIw"},
						"popCount": 3,
						"teamDefeatCount": 3,
						"defeatCount": 1
					}
				]%s
			}
		}
	}`, testCoopID, rule, resultWave, extra)
}

func salmonGroup(mode, prevStageID string) string {
	return fmt.Sprintf(`{
		"mode": %q,
		"historyDetails": {
			"nodes": [
				{"id": %q},
				{
					"id": "prev-1",
					"coopStage": {"id": %q},
					"afterGrade": {"id": "Q29vcEdyYWRlLTg="},
					"afterGradePoint": 110
				}
			]
		}
	}`, mode, testCoopID, prevStageID)
}

func TestBuildSalmonBodyClearedRun(t *testing.T) {
	weaponDict := map[string]string{"[en_US]Splattershot": "sshooter"}
	doc := salmonDoc("REGULAR", 0,
		`"bossResult": {"boss": {"id": "Q29vcEVuZW15LTIz"}, "hasDefeatBoss": true}`)

	body, err := BuildSalmonBody(doc, salmonGroup("REGULAR", "Q29vcFN0YWdlLTc="),
		"en-US", weaponDict, "stat.itok", "0.1.0")
	if err != nil {
		t.Fatalf("BuildSalmonBody() error = %v", err)
	}

	if body.UUID != testCoopUUID {
		t.Errorf("UUID = %s, want %s", body.UUID, testCoopUUID)
	}
	if body.ClearWaves == nil || *body.ClearWaves != 3 {
		t.Errorf("ClearWaves = %v, want 3 (result wave 0 means cleared)", body.ClearWaves)
	}
	if body.FailReason != "" {
		t.Errorf("FailReason = %s, want empty on a cleared run", body.FailReason)
	}
	if body.DangerRate == nil || *body.DangerRate != 150 {
		t.Errorf("DangerRate = %v, want 150", body.DangerRate)
	}
	if body.KingSmell == nil || *body.KingSmell != 3 {
		t.Errorf("KingSmell = %v, want 3", body.KingSmell)
	}
	if body.KingSalmonid != "23" {
		t.Errorf("KingSalmonid = %s, want 23", body.KingSalmonid)
	}
	if body.ClearExtra == nil || *body.ClearExtra != models.FlagYes {
		t.Errorf("ClearExtra = %v, want yes", body.ClearExtra)
	}
	if body.Stage != "7" {
		t.Errorf("Stage = %s, want 7", body.Stage)
	}
	if body.BigRun == nil || *body.BigRun != models.FlagNo {
		t.Errorf("BigRun = %v, want no", body.BigRun)
	}
	if body.Private != nil {
		t.Errorf("Private = %v, want unset for a public run", body.Private)
	}

	// previous run on the same stage carries its title forward
	if body.TitleAfter != "8" || body.TitleExpAfter == nil || *body.TitleExpAfter != 130 {
		t.Errorf("TitleAfter = %s/%v, want 8/130", body.TitleAfter, body.TitleExpAfter)
	}
	if body.TitleBefore != "8" || body.TitleExpBefore == nil || *body.TitleExpBefore != 110 {
		t.Errorf("TitleBefore = %s/%v, want 8/110", body.TitleBefore, body.TitleExpBefore)
	}

	if body.GoldenEggs == nil || *body.GoldenEggs != 75 {
		t.Errorf("GoldenEggs = %v, want 75 (sum of wave deliver counts)", body.GoldenEggs)
	}
	if body.PowerEggs == nil || *body.PowerEggs != 1000 {
		t.Errorf("PowerEggs = %v, want 1000", body.PowerEggs)
	}
	if body.GoldScale == nil || *body.GoldScale != 1 {
		t.Errorf("GoldScale = %v, want 1", body.GoldScale)
	}
	if body.JobPoint == nil || *body.JobPoint != 340 {
		t.Errorf("JobPoint = %v, want 340", body.JobPoint)
	}

	if len(body.Waves) != 3 {
		t.Fatalf("Waves = %d, want 3", len(body.Waves))
	}
	first := body.Waves[0]
	if first.Tide != "low" {
		t.Errorf("wave 1 Tide = %s, want low", first.Tide)
	}
	if first.Event != "rush" {
		t.Errorf("wave 1 Event = %s, want rush", first.Event)
	}
	if first.SpecialUses["nicedama"] != 2 || first.SpecialUses["kanitank"] != 1 {
		t.Errorf("wave 1 SpecialUses = %v", first.SpecialUses)
	}
	if body.Waves[1].Tide != "normal" {
		t.Errorf("wave 2 Tide = %s, want normal when level is absent", body.Waves[1].Tide)
	}
	if body.Waves[2].Tide != "high" {
		t.Errorf("wave 3 Tide = %s, want high", body.Waves[2].Tide)
	}

	if len(body.Players) != 2 {
		t.Fatalf("Players = %d, want 2", len(body.Players))
	}
	me := body.Players[0]
	if me.Me != models.FlagYes {
		t.Error("first squad member should be me")
	}
	if me.Uniform != "1" {
		t.Errorf("Uniform = %s, want 1", me.Uniform)
	}
	if me.Special != "nicedama" {
		t.Errorf("Special = %s, want nicedama from the numeric weapon id", me.Special)
	}
	// unknown weapon names are dropped, not guessed
	if len(me.Weapons) != 1 || me.Weapons[0] != "sshooter" {
		t.Errorf("Weapons = %v, want [sshooter]", me.Weapons)
	}
	if me.Disconnected != "" {
		t.Errorf("Disconnected = %q, want unset for an active member", me.Disconnected)
	}
	if body.Players[1].Disconnected != models.FlagYes {
		t.Error("all-zero member should be disconnected")
	}

	if boss, ok := body.Bosses["bakudan"]; !ok {
		t.Error("bosses should include bakudan")
	} else if boss.DefeatedByMe == nil || *boss.DefeatedByMe != 2 {
		t.Errorf("bakudan DefeatedByMe = %v, want 2", boss.DefeatedByMe)
	}
	if _, ok := body.Bosses["doro_shake"]; !ok {
		t.Error("bosses should include doro_shake")
	}

	wantStart := time.Date(2022, 11, 15, 12, 13, 37, 0, time.UTC).Unix()
	if body.StartAt == nil || *body.StartAt != wantStart {
		t.Errorf("StartAt = %v, want %d", body.StartAt, wantStart)
	}
	if body.Automated != models.FlagYes {
		t.Error("Automated should be yes")
	}
}

func TestBuildSalmonBodyFailReason(t *testing.T) {
	tests := []struct {
		name           string
		resultWave     int
		wantClearWaves int
		wantFailReason string
	}{
		// quota met on the losing wave means the squad was wiped out
		{"wipe out on wave 2", 2, 1, "wipe_out"},
		{"time limit on wave 3", 3, 2, "time_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := salmonDoc("REGULAR", tt.resultWave, "")
			body, err := BuildSalmonBody(doc, salmonGroup("REGULAR", "Q29vcFN0YWdlLTc="),
				"en-US", nil, "stat.itok", "0.1.0")
			if err != nil {
				t.Fatalf("BuildSalmonBody() error = %v", err)
			}
			if body.ClearWaves == nil || *body.ClearWaves != tt.wantClearWaves {
				t.Errorf("ClearWaves = %v, want %d", body.ClearWaves, tt.wantClearWaves)
			}
			if body.FailReason != tt.wantFailReason {
				t.Errorf("FailReason = %s, want %s", body.FailReason, tt.wantFailReason)
			}
		})
	}
}

func TestBuildSalmonBodyStageChangeResetsGradePoints(t *testing.T) {
	body, err := BuildSalmonBody(
		salmonDoc("REGULAR", 0, ""),
		salmonGroup("REGULAR", "Q29vcFN0YWdlLTI="),
		"en-US", nil, "stat.itok", "0.1.0",
	)
	if err != nil {
		t.Fatalf("BuildSalmonBody() error = %v", err)
	}

	if body.TitleBefore != "8" {
		t.Errorf("TitleBefore = %s, want the current title after a stage change", body.TitleBefore)
	}
	if body.TitleExpBefore == nil || *body.TitleExpBefore != 40 {
		t.Errorf("TitleExpBefore = %v, want the reset baseline 40", body.TitleExpBefore)
	}
}

func TestBuildSalmonBodyBigRun(t *testing.T) {
	body, err := BuildSalmonBody(
		salmonDoc("BIG_RUN", 0, ""),
		salmonGroup("REGULAR", "Q29vcFN0YWdlLTc="),
		"en-US", nil, "stat.itok", "0.1.0",
	)
	if err != nil {
		t.Fatalf("BuildSalmonBody() error = %v", err)
	}

	if body.BigRun == nil || *body.BigRun != models.FlagYes {
		t.Errorf("BigRun = %v, want yes", body.BigRun)
	}
	if body.Stage != "" {
		t.Errorf("Stage = %s, want empty for a big run", body.Stage)
	}
}

func TestBuildSalmonBodyPrivate(t *testing.T) {
	body, err := BuildSalmonBody(
		salmonDoc("REGULAR", 0, ""),
		salmonGroup("PRIVATE_CUSTOM", "Q29vcFN0YWdlLTc="),
		"en-US", nil, "stat.itok", "0.1.0",
	)
	if err != nil {
		t.Fatalf("BuildSalmonBody() error = %v", err)
	}

	if body.Private == nil || *body.Private != models.FlagYes {
		t.Errorf("Private = %v, want yes", body.Private)
	}
	// private scenarios have no grade progression
	if body.TitleAfter != "" || body.TitleExpBefore != nil {
		t.Errorf("title fields = %s/%v, want unset for private runs",
			body.TitleAfter, body.TitleExpBefore)
	}
}
