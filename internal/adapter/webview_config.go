package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// WebViewConfig holds the live web-app version string and any
// persisted-query hash overrides scraped from the web app's JS bundle.
type WebViewConfig struct {
	Version     string
	QueryHashes map[string]string
}

var (
	mainJSPathRe = regexp.MustCompile(`src="(/static/js/main\.[0-9a-f]+\.js)"`)
	versionRe    = regexp.MustCompile(`=.(?P<revision>[0-9a-f]{40}).*?revision_info_not_set.*?=.(?P<version>\d+\.\d+\.\d+)-`)
	queryIDRe    = regexp.MustCompile(`params:\{id:.(?P<id>[0-9a-f]{32}).,metadata:\{\},name:.(?P<name>[a-zA-Z0-9_]+).,`)
)

// webViewProber scrapes the platform web app for its current version
// and query-hash registry, caching the combined result. The fallback
// constants from config always seed the result so a failed probe never
// leaves the pipeline without a usable version.
type webViewProber struct {
	cfg    *config.PlatformConfig
	client *http.Client

	mu        sync.Mutex
	cached    *WebViewConfig
	fetchedAt time.Time
}

func newWebViewProber(cfg *config.PlatformConfig, client *http.Client) *webViewProber {
	return &webViewProber{cfg: cfg, client: client}
}

// Get returns the current web-view config, probing at most once per TTL.
func (p *webViewProber) Get(ctx context.Context) *WebViewConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.fetchedAt) < p.cfg.WebViewConfigTTL {
		return p.cached
	}

	combined := &WebViewConfig{
		Version:     p.cfg.FallbackWebViewVersion,
		QueryHashes: make(map[string]string),
	}
	for name, hash := range models.DefaultQueryHashes {
		combined.QueryHashes[name] = hash
	}

	if live, err := p.probe(ctx); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Web view probe failed, using fallback config")
	} else {
		if live.Version != "" {
			combined.Version = live.Version
		}
		for name, hash := range live.QueryHashes {
			combined.QueryHashes[name] = hash
		}
	}

	p.cached = combined
	p.fetchedAt = time.Now()
	return combined
}

func (p *webViewProber) probe(ctx context.Context) (*WebViewConfig, error) {
	html, err := p.fetch(ctx, p.cfg.SplatNet3URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch web app page: %w", err)
	}

	m := mainJSPathRe.FindStringSubmatch(html)
	if m == nil {
		return nil, fmt.Errorf("main js bundle path not found")
	}

	js, err := p.fetch(ctx, p.cfg.SplatNet3URL+m[1])
	if err != nil {
		return nil, fmt.Errorf("failed to fetch js bundle: %w", err)
	}

	return parseWebViewData(js)
}

func (p *webViewProber) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-Requested-With", "com.nintendo.znca")
	req.Header.Set("Referer", p.cfg.SplatNet3URL)
	req.Header.Set("Cookie", "_dht=1")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// parseWebViewData extracts the version string and the persisted-query
// id registry from the web app's JS bundle.
func parseWebViewData(js string) (*WebViewConfig, error) {
	out := &WebViewConfig{QueryHashes: make(map[string]string)}

	vm := versionRe.FindStringSubmatch(js)
	if vm == nil {
		return nil, fmt.Errorf("version marker not found in js bundle")
	}
	revision := vm[versionRe.SubexpIndex("revision")]
	version := vm[versionRe.SubexpIndex("version")]
	out.Version = fmt.Sprintf("%s-%s", version, revision[:8])

	for _, m := range queryIDRe.FindAllStringSubmatch(js, -1) {
		name := m[queryIDRe.SubexpIndex("name")]
		id := m[queryIDRe.SubexpIndex("id")]
		out.QueryHashes[name] = id
	}

	return out, nil
}
