package models

// TokenCopyInfo captures the user-interactive start of the auth chain:
// the authorize URL the user visits, the PKCE verifier it was built
// with, and the redirect URL the user pastes back.
type TokenCopyInfo struct {
	CopyRedirectionURL string `json:"copyRedirectionUrl"`
	AuthCodeVerifier   string `json:"authCodeVerifier"`
	RedirectURL        string `json:"redirectUrl"`
}

// TokenPair is the access-token exchange result.
type TokenPair struct {
	AccessToken string `json:"accessToken"`
	IDToken     string `json:"idToken"`
}

// UserInfo is the platform user profile.
type UserInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Lang     string `json:"lang"`
	Country  string `json:"country"`
	Birthday string `json:"birthday"`
}

// AuthContext is the full chain of derived credentials needed to query
// the source platform on a user's behalf. Tokens later in the chain are
// only valid if derived from the stored session token; chain steps
// return new values and a refresh replaces the whole context, never a
// single field.
type AuthContext struct {
	TokenCopyInfo TokenCopyInfo `json:"tokenCopyInfo"`
	SessionToken  string        `json:"sessionToken"`
	AccessToken   TokenPair     `json:"accessTokenInfo"`
	User          UserInfo      `json:"userInfo"`
	PreGameToken  string        `json:"preGameToken"`
	CoralUserID   string        `json:"coralUserId"`
	GameToken     string        `json:"gameToken"`
	BulletToken   string        `json:"bulletToken"`
}

// PreCheckResult is the outcome of probing an AuthContext.
type PreCheckResult int

const (
	// PreCheckReady means the stored context is usable as-is.
	PreCheckReady PreCheckResult = iota + 1
	// PreCheckAutoRefreshed means the chain was re-derived from the
	// stored session token and the caller must persist the new context.
	PreCheckAutoRefreshed
	// PreCheckNeedRebuildFromBegin means the session token itself is no
	// longer valid; only fresh user interaction can recover.
	PreCheckNeedRebuildFromBegin
)

func (r PreCheckResult) String() string {
	switch r {
	case PreCheckReady:
		return "Ready"
	case PreCheckAutoRefreshed:
		return "AutoRefreshed"
	case PreCheckNeedRebuildFromBegin:
		return "NeedRebuildFromBegin"
	default:
		return "Unknown"
	}
}
