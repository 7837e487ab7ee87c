package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAuthContextRoundTrip(t *testing.T) {
	original := AuthContext{
		TokenCopyInfo: TokenCopyInfo{
			CopyRedirectionURL: "https://accounts.example/authorize?state=abc",
			AuthCodeVerifier:   "verifier-1",
			RedirectURL:        "npf71b963c1b7b6d119://auth#session_token_code=xyz",
		},
		SessionToken: "session-1",
		AccessToken: TokenPair{
			AccessToken: "access-1",
			IDToken:     "id-1",
		},
		User: UserInfo{
			ID:       "user-1",
			Nickname: "alpha",
			Lang:     "en-US",
			Country:  "US",
			Birthday: "2000-01-02",
		},
		PreGameToken: "pre-game-1",
		CoralUserID:  "coral-1",
		GameToken:    "game-1",
		BulletToken:  "bullet-1",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got AuthContext
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, original)
	}

	// persisted key names are part of the storage contract
	for _, key := range []string{
		`"tokenCopyInfo"`, `"sessionToken"`, `"accessTokenInfo"`,
		`"userInfo"`, `"preGameToken"`, `"coralUserId"`,
		`"gameToken"`, `"bulletToken"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized form missing %s", key)
		}
	}
}
