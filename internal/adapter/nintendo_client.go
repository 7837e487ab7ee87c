package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
	"github.com/Itoktsnhc/stat.itok/internal/retry"
)

const (
	ninClientID    = "71b963c1b7b6d119"
	ninRedirectURI = "npf71b963c1b7b6d119://auth"
	ninGameID      = 4834290508791808
	browserUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36 Edg/107.0.1418.35"
)

var sessionCodeRe = regexp.MustCompile(`code=(.*)&`)

// NintendoClient talks to the platform auth endpoints and the GraphQL
// API. One instance is shared by the dispatcher and all workers.
type NintendoClient struct {
	cfg     *config.PlatformConfig
	client  *http.Client
	fcalc   *FCalcClient
	prober  *webViewProber
	limiter *rate.Limiter
}

// NewNintendoClient creates a client for the platform API.
func NewNintendoClient(cfg *config.PlatformConfig, fcalc *FCalcClient) *NintendoClient {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &NintendoClient{
		cfg:     cfg,
		client:  httpClient,
		fcalc:   fcalc,
		prober:  newWebViewProber(cfg, httpClient),
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// WebViewConfig exposes the current (possibly cached) web-app config.
func (c *NintendoClient) WebViewConfig(ctx context.Context) *WebViewConfig {
	return c.prober.Get(ctx)
}

// AuthorizeURL builds the login URL the user must visit to start the
// token-copy flow. The challenge is the S256 hash of the verifier.
func (c *NintendoClient) AuthorizeURL(state string, codeVerifier string) string {
	sum := sha256.Sum256([]byte(strings.ReplaceAll(codeVerifier, "=", "")))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	q := url.Values{}
	q.Set("state", state)
	q.Set("redirect_uri", ninRedirectURI)
	q.Set("client_id", ninClientID)
	q.Set("scope", "openid user user.birthday user.mii user.screenName")
	q.Set("response_type", "session_token_code")
	q.Set("session_token_code_challenge", challenge)
	q.Set("session_token_code_challenge_method", "S256")
	q.Set("theme", "login_form")

	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

// GetSessionToken exchanges the code embedded in the user-pasted
// redirect URL for a session token.
func (c *NintendoClient) GetSessionToken(ctx context.Context, redirectURL string, codeVerifier string) (string, error) {
	m := sessionCodeRe.FindStringSubmatch(redirectURL)
	if m == nil {
		return "", errors.NewInvalidParameterError("redirectUrl", "no session code found")
	}
	code := m[1]

	form := url.Values{}
	form.Set("client_id", ninClientID)
	form.Set("session_token_code", code)
	form.Set("session_token_code_verifier", strings.ReplaceAll(codeVerifier, "=", ""))

	headers := map[string]string{
		"User-Agent":      fmt.Sprintf("OnlineLounge/%s NASDKAPI Android", c.cfg.FallbackNSOAppVersion),
		"Accept-Language": "en-US",
		"Accept":          "application/json",
		"Content-Type":    "application/x-www-form-urlencoded",
	}

	body, err := c.do(ctx, http.MethodPost, c.cfg.SessionTokenURL, strings.NewReader(form.Encode()), headers)
	if err != nil {
		return "", err
	}

	var resp struct {
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", errors.NewProviderError("session-token", err)
	}
	if resp.SessionToken == "" {
		return "", errors.NewMissingFieldError("session-token", "session_token")
	}
	return resp.SessionToken, nil
}

// GetAccessToken exchanges the session token for the access/id token
// pair.
func (c *NintendoClient) GetAccessToken(ctx context.Context, sessionToken string) (models.TokenPair, error) {
	payload, _ := json.Marshal(map[string]string{
		"client_id":     ninClientID,
		"session_token": sessionToken,
		"grant_type":    "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token",
	})

	headers := map[string]string{
		"User-Agent":   "Dalvik/2.1.0 (Linux; U; Android 7.1.2)",
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}

	body, err := c.do(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(string(payload)), headers)
	if err != nil {
		return models.TokenPair{}, err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return models.TokenPair{}, errors.NewProviderError("access-token", err)
	}
	if resp.AccessToken == "" {
		return models.TokenPair{}, errors.NewMissingFieldError("access-token", "access_token")
	}
	if resp.IDToken == "" {
		return models.TokenPair{}, errors.NewMissingFieldError("access-token", "id_token")
	}
	return models.TokenPair{AccessToken: resp.AccessToken, IDToken: resp.IDToken}, nil
}

// GetUserInfo fetches the platform user profile.
func (c *NintendoClient) GetUserInfo(ctx context.Context, accessToken string) (models.UserInfo, error) {
	headers := map[string]string{
		"User-Agent":    "NASDKAPI; Android",
		"Accept":        "application/json",
		"Authorization": "Bearer " + accessToken,
	}

	body, err := c.do(ctx, http.MethodGet, c.cfg.UserInfoURL, nil, headers)
	if err != nil {
		return models.UserInfo{}, err
	}

	var resp struct {
		ID       string `json:"id"`
		Nickname string `json:"nickname"`
		Language string `json:"language"`
		Country  string `json:"country"`
		Birthday string `json:"birthday"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return models.UserInfo{}, errors.NewProviderError("user-info", err)
	}
	for field, v := range map[string]string{
		"id": resp.ID, "nickname": resp.Nickname, "language": resp.Language,
		"country": resp.Country, "birthday": resp.Birthday,
	} {
		if v == "" {
			return models.UserInfo{}, errors.NewMissingFieldError("user-info", field)
		}
	}

	return models.UserInfo{
		ID:       resp.ID,
		Nickname: resp.Nickname,
		Lang:     resp.Language,
		Country:  resp.Country,
		Birthday: resp.Birthday,
	}, nil
}

// GetPreGameToken performs the account login (F-value step 1) and
// returns the pre-game token plus the coral user id required by the
// next stage.
func (c *NintendoClient) GetPreGameToken(ctx context.Context, idToken string, user models.UserInfo) (string, string, error) {
	f, err := c.fcalc.Compute(ctx, idToken, 1, user.ID, "")
	if err != nil {
		return "", "", err
	}

	payload, _ := json.Marshal(map[string]map[string]string{
		"parameter": {
			"f":          f.F,
			"language":   user.Lang,
			"naBirthday": user.Birthday,
			"naCountry":  user.Country,
			"naIdToken":  idToken,
			"requestId":  f.RequestID,
			"timestamp":  f.Timestamp,
		},
	})

	headers := c.znaHeaders("")

	body, err := c.do(ctx, http.MethodPost, c.cfg.AccountLoginURL, strings.NewReader(string(payload)), headers)
	if err != nil {
		return "", "", err
	}

	var resp struct {
		Result struct {
			WebAPIServerCredential struct {
				AccessToken string `json:"accessToken"`
			} `json:"webApiServerCredential"`
			User struct {
				ID json.Number `json:"id"`
			} `json:"user"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", "", errors.NewProviderError("account-login", err)
	}
	if resp.Result.WebAPIServerCredential.AccessToken == "" {
		return "", "", errors.NewMissingFieldError("account-login", "result.webApiServerCredential.accessToken")
	}
	if resp.Result.User.ID.String() == "" {
		return "", "", errors.NewMissingFieldError("account-login", "result.user.id")
	}

	return resp.Result.WebAPIServerCredential.AccessToken, resp.Result.User.ID.String(), nil
}

// GetGameToken exchanges the pre-game token for the game (web service)
// token, using F-value step 2.
func (c *NintendoClient) GetGameToken(ctx context.Context, preGameToken string, user models.UserInfo, coralUserID string) (string, error) {
	f, err := c.fcalc.Compute(ctx, preGameToken, 2, user.ID, coralUserID)
	if err != nil {
		return "", err
	}

	payload, _ := json.Marshal(map[string]map[string]interface{}{
		"parameter": {
			"f":                 f.F,
			"id":                ninGameID,
			"registrationToken": preGameToken,
			"requestId":         f.RequestID,
			"timestamp":         f.Timestamp,
		},
	})

	headers := c.znaHeaders(preGameToken)

	body, err := c.do(ctx, http.MethodPost, c.cfg.WebServiceTokenURL, strings.NewReader(string(payload)), headers)
	if err != nil {
		return "", err
	}

	var resp struct {
		Result struct {
			AccessToken string `json:"accessToken"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", errors.NewProviderError("game-token", err)
	}
	if resp.Result.AccessToken == "" {
		return "", errors.NewMissingFieldError("game-token", "result.accessToken")
	}
	return resp.Result.AccessToken, nil
}

// GetBulletToken exchanges the game token for the bearer token the
// GraphQL API accepts.
func (c *NintendoClient) GetBulletToken(ctx context.Context, gameToken string, user models.UserInfo) (string, error) {
	headers := map[string]string{
		"Accept-Language":  user.Lang,
		"User-Agent":       browserUA,
		"X-Web-View-Ver":   c.prober.Get(ctx).Version,
		"Accept":           "*/*",
		"Origin":           c.cfg.SplatNet3URL,
		"X-NACOUNTRY":      user.Country,
		"X-Requested-With": "com.nintendo.znca",
		"Content-Type":     "application/json",
		"Cookie":           "_dht=1;_gtoken=" + gameToken,
	}

	body, err := c.do(ctx, http.MethodPost, c.cfg.SplatNet3URL+"/api/bullet_tokens", nil, headers)
	if err != nil {
		return "", err
	}

	var resp struct {
		BulletToken string `json:"bulletToken"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", errors.NewProviderError("bullet-token", err)
	}
	if resp.BulletToken == "" {
		return "", errors.NewMissingFieldError("bullet-token", "bulletToken")
	}
	return resp.BulletToken, nil
}

// SendGraphQL posts a persisted query and returns the raw response
// JSON. varName/varValue carry the optional single named variable.
func (c *NintendoClient) SendGraphQL(ctx context.Context, auth *models.AuthContext, queryName string, varName string, varValue string) (string, error) {
	wv := c.prober.Get(ctx)
	hash, ok := wv.QueryHashes[queryName]
	if !ok {
		return "", errors.NewInvalidParameterError("queryName", "unknown query "+queryName)
	}

	headers := map[string]string{
		"Authorization":    "Bearer " + auth.BulletToken,
		"Accept-Language":  auth.User.Lang,
		"User-Agent":       browserUA,
		"X-Web-View-Ver":   wv.Version,
		"Accept":           "*/*",
		"Origin":           c.cfg.SplatNet3URL,
		"X-Requested-With": "com.nintendo.znca",
		"Referer": fmt.Sprintf("%s?lang=%s&na_country=%s&na_lang=%s",
			c.cfg.SplatNet3URL, auth.User.Lang, auth.User.Country, auth.User.Lang),
		"Content-Type": "application/json",
		"Cookie":       "_gtoken=" + auth.GameToken,
	}

	return c.do(ctx, http.MethodPost, c.cfg.GraphQLURL, strings.NewReader(BuildGraphQLBody(hash, varName, varValue)), headers)
}

// BuildGraphQLBody builds a persisted-query request body with an
// optional single named variable.
func BuildGraphQLBody(queryHash string, varName string, varValue string) string {
	variables := map[string]string{}
	if varName != "" && varValue != "" {
		variables[varName] = varValue
	}
	body := map[string]interface{}{
		"extensions": map[string]interface{}{
			"persistedQuery": map[string]interface{}{
				"sha256Hash": queryHash,
				"version":    1,
			},
		},
		"variables": variables,
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

// znaHeaders are the shared headers for the account-login and
// web-service-token endpoints.
func (c *NintendoClient) znaHeaders(bearer string) map[string]string {
	h := map[string]string{
		"User-Agent":       fmt.Sprintf("com.nintendo.znca/%s(Android/7.1.2)", c.cfg.FallbackNSOAppVersion),
		"X-ProductVersion": c.cfg.FallbackNSOAppVersion,
		"X-Platform":       "Android",
		"Content-Type":     "application/json",
	}
	if bearer != "" {
		h["Authorization"] = "Bearer " + bearer
	}
	return h
}

// do performs one rate-limited, retried HTTP call and returns the
// response body. getBody must be re-readable, so callers pass strings.
func (c *NintendoClient) do(ctx context.Context, method string, rawURL string, body io.Reader, headers map[string]string) (string, error) {
	var payload string
	if body != nil {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		payload = string(raw)
	}

	var out string
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != "" {
			reader = strings.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return errors.NewProviderError("nintendo", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewProviderError("nintendo", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.NewProviderStatusError("nintendo", resp.StatusCode, string(raw))
		}

		out = string(raw)
		return nil
	})
	return out, err
}
