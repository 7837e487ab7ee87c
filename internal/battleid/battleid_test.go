package battleid

import (
	"encoding/base64"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Itoktsnhc/stat.itok/internal/models"
)

const (
	rawBattleID = "VnNIaXN0b3J5RGV0YWlsLXUtcXNsNWZnZnhna3dub242dG1ubW06UkVDRU5UOjIwMjIxMTE1VDEyMTMzN184YTJjNzFhMi00ZjI3LTRmYTUtYTE0ZC1jNGM2YTI1ZDkyMWI="
	rawCoopID   = "Q29vcEhpc3RvcnlEZXRhaWwtdS1xc2w1ZmdmeGdrd25vbjZ0bW5tbToyMDIyMTExNVQxMjEzMzdfOGEyYzcxYTItNGYyNy00ZmE1LWExNGQtYzRjNmEyNWQ5MjFi"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		rawID    string
		wantUUID string
		wantType models.MatchType
	}{
		{
			name:     "versus battle",
			rawID:    rawBattleID,
			wantUUID: "f798fb42-689d-58f8-b1d8-2b60adb91cd1",
			wantType: models.MatchTypeBattle,
		},
		{
			name:     "cooperative run",
			rawID:    rawCoopID,
			wantUUID: "526fd8d3-9032-59be-b2f1-2587d93e7a87",
			wantType: models.MatchTypeSalmon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotType, err := Compute(tt.rawID)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if got != tt.wantUUID {
				t.Errorf("Compute() uuid = %s, want %s", got, tt.wantUUID)
			}
			if gotType != tt.wantType {
				t.Errorf("Compute() type = %s, want %s", gotType, tt.wantType)
			}
		})
	}
}

func TestComputeSameSuffixDifferentType(t *testing.T) {
	// both fixture ids share the same trailing 52 chars; the namespace
	// split must still keep their UUIDs distinct
	battleUUID, _, err := Compute(rawBattleID)
	if err != nil {
		t.Fatalf("Compute(battle) error = %v", err)
	}
	coopUUID, _, err := Compute(rawCoopID)
	if err != nil {
		t.Fatalf("Compute(coop) error = %v", err)
	}
	if battleUUID == coopUUID {
		t.Errorf("battle and coop ids collided: %s", battleUUID)
	}
}

func TestComputeErrors(t *testing.T) {
	t.Run("invalid base64", func(t *testing.T) {
		if _, _, err := Compute("not-base64!!!"); err == nil {
			t.Error("expected error for invalid base64")
		}
	})

	t.Run("too short", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("short"))
		if _, _, err := Compute(short); err == nil {
			t.Error("expected error for short decoded id")
		}
	})
}

func TestClassify(t *testing.T) {
	gotBattle, err := Classify(rawBattleID)
	if err != nil {
		t.Fatalf("Classify(battle) error = %v", err)
	}
	if gotBattle != models.MatchTypeBattle {
		t.Errorf("Classify(battle) = %s", gotBattle)
	}

	gotCoop, err := Classify(rawCoopID)
	if err != nil {
		t.Fatalf("Classify(coop) error = %v", err)
	}
	if gotCoop != models.MatchTypeSalmon {
		t.Errorf("Classify(coop) = %s", gotCoop)
	}
}

func TestParseCommonID(t *testing.T) {
	tests := []struct {
		name  string
		rawID string
		want  string
	}{
		{"stage", "VnNTdGFnZS0xNg==", "16"},
		{"weapon", "V2VhcG9uLTEwMzE=", "1031"},
		{"boss", "Q29vcEVuZW15LTIz", "23"},
		{"special", "U3BlY2lhbFdlYXBvbi0yMDAxMg==", "20012"},
		{"coop stage", "Q29vcFN0YWdlLTc=", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommonID(tt.rawID)
			if err != nil {
				t.Fatalf("ParseCommonID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseCommonID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same input always yields same uuid", prop.ForAll(
		func(suffix string) bool {
			raw := base64.StdEncoding.EncodeToString([]byte("VsHistoryDetail-" + suffix))
			first, _, err1 := Compute(raw)
			second, _, err2 := Compute(raw)
			if err1 != nil || err2 != nil {
				// short inputs are rejected consistently
				return (err1 == nil) == (err2 == nil)
			}
			return first == second
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
