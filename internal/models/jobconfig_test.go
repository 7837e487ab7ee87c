package models

import "testing"

func TestCorrectUserLang(t *testing.T) {
	tests := []struct {
		name        string
		forced      string
		profileLang string
		wantLang    string
	}{
		{"no override keeps profile locale", "", "ja-JP", "ja-JP"},
		{"override wins over profile", "en-US", "ja-JP", "en-US"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &JobConfig{ForcedUserLang: tt.forced}
			cfg.AuthContext.User.Lang = tt.profileLang

			cfg.CorrectUserLang()

			if cfg.AuthContext.User.Lang != tt.wantLang {
				t.Errorf("User.Lang = %s, want %s", cfg.AuthContext.User.Lang, tt.wantLang)
			}
			if cfg.ForcedUserLang != tt.wantLang {
				t.Errorf("ForcedUserLang = %s, want %s", cfg.ForcedUserLang, tt.wantLang)
			}
		})
	}
}

func TestIsListingQuery(t *testing.T) {
	if !IsListingQuery(QueryLatestBattleHistories) {
		t.Error("LatestBattleHistories should be a listing query")
	}
	if !IsListingQuery(QueryCoopResult) {
		t.Error("CoopResult should be a listing query")
	}
	if IsListingQuery(QueryVsHistoryDetail) {
		t.Error("VsHistoryDetail is a detail query, not a listing query")
	}
	if IsListingQuery("NoSuchQuery") {
		t.Error("unknown names are not listing queries")
	}
}
