package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/retry"
)

// FResult is the F-value service response: the anti-abuse proof plus
// the request id and timestamp it was computed with. All three must be
// echoed back to the platform together.
type FResult struct {
	F         string `json:"f"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// FCalcClient calls the external F-value signing service.
type FCalcClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewFCalcClient creates a new F-value service client.
func NewFCalcClient(baseURL string, agentName string, agentVersion string) *FCalcClient {
	return &FCalcClient{
		baseURL:   baseURL,
		userAgent: fmt.Sprintf("%s/%s", agentName, agentVersion),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Compute requests an F-value for the given token. Step is 1 for the
// pre-game login and 2 for the game-token exchange; step 2 also sends
// the coral user id. The computation mode differs per step, so results
// are never reusable across stages.
func (c *FCalcClient) Compute(ctx context.Context, idToken string, step int, naID string, coralUserID string) (*FResult, error) {
	body := map[string]string{
		"token":       idToken,
		"hash_method": fmt.Sprintf("%d", step),
		"na_id":       naID,
	}
	if step == 2 && coralUserID != "" {
		body["coral_user_id"] = coralUserID
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal f-calc request: %w", err)
	}

	var result FResult
	err = retry.Do(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return errors.NewProviderError("f-calc", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewProviderError("f-calc", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.NewProviderStatusError("f-calc", resp.StatusCode, string(raw))
		}

		if err := json.Unmarshal(raw, &result); err != nil {
			return errors.NewProviderError("f-calc", err)
		}
		if result.F == "" || result.RequestID == "" || result.Timestamp == "" {
			return errors.NewMissingFieldError("f-calc", "f/request_id/timestamp")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
