package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
	"github.com/Itoktsnhc/stat.itok/internal/retry"
)

// keyEntry is one row of the key endpoints: a canonical key plus its
// localized display names.
type keyEntry struct {
	Key  string            `json:"key"`
	Name map[string]string `json:"name"`
}

type keyCache struct {
	mu        sync.RWMutex
	dict      map[string]string
	fetchedAt time.Time
}

// StatInkClient uploads finished results and resolves localized
// gear/weapon names to canonical keys.
type StatInkClient struct {
	cfg     *config.StatInkConfig
	client  *http.Client
	limiter *rate.Limiter

	gearKeys   keyCache
	weaponKeys keyCache
}

// NewStatInkClient creates a client for the upload service.
func NewStatInkClient(cfg *config.StatInkConfig) *StatInkClient {
	return &StatInkClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// VerifyAPIKey checks an API key against the uuid-list endpoint.
func (c *StatInkClient) VerifyAPIKey(ctx context.Context, apiKey string) error {
	_, err := c.do(ctx, http.MethodGet, c.cfg.UUIDListURL, apiKey, "")
	return err
}

// PostBattle uploads one battle result.
func (c *StatInkClient) PostBattle(ctx context.Context, apiKey string, body *models.BattleBody) (*models.UploadResult, error) {
	return c.post(ctx, c.cfg.BattleURL, apiKey, body)
}

// PostSalmon uploads one salmon run result.
func (c *StatInkClient) PostSalmon(ctx context.Context, apiKey string, body *models.SalmonBody) (*models.UploadResult, error) {
	return c.post(ctx, c.cfg.SalmonURL, apiKey, body)
}

func (c *StatInkClient) post(ctx context.Context, url string, apiKey string, body interface{}) (*models.UploadResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewInternalError("marshal upload body", err)
	}

	raw, err := c.do(ctx, http.MethodPost, url, apiKey, string(payload))
	if err != nil {
		return nil, err
	}

	var result models.UploadResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, errors.NewProviderError("stat.ink", err)
	}
	if result.ID == "" {
		return nil, errors.NewMissingFieldError("stat.ink upload", "id")
	}
	return &result, nil
}

// GearKeys returns the localized-name to ability-key dictionary,
// refreshed at most once per cache TTL. Dictionary keys have the form
// "[lang]name" with '-' in the language tag replaced by '_'.
func (c *StatInkClient) GearKeys(ctx context.Context) (map[string]string, error) {
	return c.keyDict(ctx, &c.gearKeys, c.cfg.AbilityKeyURL)
}

// SalmonWeaponKeys returns the localized-name to weapon-key dictionary
// used for salmon run loadouts.
func (c *StatInkClient) SalmonWeaponKeys(ctx context.Context) (map[string]string, error) {
	return c.keyDict(ctx, &c.weaponKeys, c.cfg.WeaponKeyURL)
}

func (c *StatInkClient) keyDict(ctx context.Context, cache *keyCache, url string) (map[string]string, error) {
	cache.mu.RLock()
	if cache.dict != nil && time.Since(cache.fetchedAt) < c.cfg.KeyCacheTTL {
		dict := cache.dict
		cache.mu.RUnlock()
		return dict, nil
	}
	cache.mu.RUnlock()

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.dict != nil && time.Since(cache.fetchedAt) < c.cfg.KeyCacheTTL {
		return cache.dict, nil
	}

	raw, err := c.do(ctx, http.MethodGet, url, "", "")
	if err != nil {
		if cache.dict != nil {
			return cache.dict, nil
		}
		return nil, err
	}

	var entries []keyEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, errors.NewProviderError("stat.ink", err)
	}

	dict := make(map[string]string)
	for _, e := range entries {
		for lang, name := range e.Name {
			dictKey := fmt.Sprintf("[%s]%s", strings.ReplaceAll(lang, "-", "_"), name)
			dict[dictKey] = e.Key
		}
	}

	cache.dict = dict
	cache.fetchedAt = time.Now()
	return dict, nil
}

func (c *StatInkClient) do(ctx context.Context, method string, url string, apiKey string, payload string) (string, error) {
	var out string
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != "" {
			reader = strings.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
		if payload != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", c.cfg.AgentName, c.cfg.AgentVersion))

		resp, err := c.client.Do(req)
		if err != nil {
			return errors.NewProviderError("stat.ink", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewProviderError("stat.ink", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.NewProviderStatusError("stat.ink", resp.StatusCode, string(raw))
		}

		out = string(raw)
		return nil
	})
	return out, err
}
