package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/Itoktsnhc/stat.itok/internal/adapter"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// SessionManager drives the token chain: from the user-interactive
// token copy through session, access, pre-game, game and bullet
// tokens, and the pre-check that decides whether a stored chain is
// still usable.
type SessionManager struct {
	nintendo *adapter.NintendoClient
	logger   *logging.Logger
}

// NewSessionManager creates a session manager on top of the platform
// client.
func NewSessionManager(nintendo *adapter.NintendoClient, logger *logging.Logger) *SessionManager {
	return &SessionManager{nintendo: nintendo, logger: logger}
}

// NewTokenCopyInfo generates a fresh PKCE state/verifier pair and the
// authorize URL the user must visit.
func (m *SessionManager) NewTokenCopyInfo() (models.TokenCopyInfo, error) {
	state, err := randomURLSafe(36)
	if err != nil {
		return models.TokenCopyInfo{}, err
	}
	verifier, err := randomURLSafe(32)
	if err != nil {
		return models.TokenCopyInfo{}, err
	}
	return models.TokenCopyInfo{
		CopyRedirectionURL: m.nintendo.AuthorizeURL(state, verifier),
		AuthCodeVerifier:   verifier,
	}, nil
}

// BuildFromRedirect turns a pasted redirect URL plus the verifier it
// was issued against into a complete auth context.
func (m *SessionManager) BuildFromRedirect(ctx context.Context, info models.TokenCopyInfo) (*models.AuthContext, error) {
	sessionToken, err := m.nintendo.GetSessionToken(ctx, info.RedirectURL, info.AuthCodeVerifier)
	if err != nil {
		return nil, errors.NewAuthChainError("session-token", err)
	}

	auth := &models.AuthContext{
		TokenCopyInfo: info,
		SessionToken:  sessionToken,
	}
	if err := m.rebuildFromSessionToken(ctx, auth); err != nil {
		return nil, err
	}
	return auth, nil
}

// Rebuild re-derives every downstream token from the stored session
// token, in place.
func (m *SessionManager) Rebuild(ctx context.Context, auth *models.AuthContext) error {
	if auth.SessionToken == "" {
		return errors.NewAuthChainError("session-token", errors.NewMissingFieldError("auth-context", "sessionToken"))
	}
	return m.rebuildFromSessionToken(ctx, auth)
}

// rebuildFromSessionToken derives the chain into a scratch copy and
// writes it back only when every step succeeded, so a mid-chain failure
// never leaves a half-refreshed context behind.
func (m *SessionManager) rebuildFromSessionToken(ctx context.Context, auth *models.AuthContext) error {
	next := *auth

	tokens, err := m.nintendo.GetAccessToken(ctx, next.SessionToken)
	if err != nil {
		return errors.NewAuthChainError("access-token", err)
	}
	next.AccessToken = tokens

	user, err := m.nintendo.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return errors.NewAuthChainError("user-info", err)
	}
	next.User = user

	preGameToken, coralUserID, err := m.nintendo.GetPreGameToken(ctx, tokens.IDToken, user)
	if err != nil {
		return errors.NewAuthChainError("pre-game-token", err)
	}
	next.PreGameToken = preGameToken
	next.CoralUserID = coralUserID

	gameToken, err := m.nintendo.GetGameToken(ctx, preGameToken, user, coralUserID)
	if err != nil {
		return errors.NewAuthChainError("game-token", err)
	}
	next.GameToken = gameToken

	bulletToken, err := m.nintendo.GetBulletToken(ctx, gameToken, user)
	if err != nil {
		return errors.NewAuthChainError("bullet-token", err)
	}
	next.BulletToken = bulletToken

	*auth = next
	m.logger.WithField("user", user.Nickname).Info("auth chain rebuilt from session token")
	return nil
}

// PreCheck probes a stored auth context with a cheap query. Ready means
// use it as-is; AutoRefreshed means the chain was re-derived and must
// be persisted; NeedRebuildFromBegin means only user interaction can
// recover.
func (m *SessionManager) PreCheck(ctx context.Context, auth *models.AuthContext) (models.PreCheckResult, error) {
	if auth.BulletToken != "" && auth.GameToken != "" {
		if m.probe(ctx, auth) {
			return models.PreCheckReady, nil
		}
	}

	if err := m.Rebuild(ctx, auth); err != nil {
		return models.PreCheckNeedRebuildFromBegin, err
	}
	if !m.probe(ctx, auth) {
		return models.PreCheckNeedRebuildFromBegin,
			errors.NewAuthChainError("pre-check", errors.NewMissingFieldError("home-query", "currentPlayer"))
	}
	return models.PreCheckAutoRefreshed, nil
}

// probe runs the home query and checks the response carries data.
func (m *SessionManager) probe(ctx context.Context, auth *models.AuthContext) bool {
	raw, err := m.nintendo.SendGraphQL(ctx, auth, models.QueryHomeQuery, "naCountry", auth.User.Country)
	if err != nil {
		m.logger.WithError(err).Debug("home query probe failed")
		return false
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return false
	}
	return len(resp.Data) > 2
}

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewInternalError("generate random token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
