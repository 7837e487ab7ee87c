package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

const sampleBundle = `var r="0123456789abcdef0123456789abcdef01234567",t="revision_info_not_set",v="6.0.0-deadbeef";` +
	`params:{id:"aaaabbbbccccddddeeeeffff00001111",metadata:{},name:"LatestBattleHistories",` +
	`params:{id:"11112222333344445555666677778888",metadata:{},name:"CoopResult",`

func TestParseWebViewData(t *testing.T) {
	cfg, err := parseWebViewData(sampleBundle)
	if err != nil {
		t.Fatalf("parseWebViewData() error = %v", err)
	}

	if cfg.Version != "6.0.0-01234567" {
		t.Errorf("Version = %s, want 6.0.0-01234567", cfg.Version)
	}
	if cfg.QueryHashes["LatestBattleHistories"] != "aaaabbbbccccddddeeeeffff00001111" {
		t.Errorf("LatestBattleHistories hash = %s", cfg.QueryHashes["LatestBattleHistories"])
	}
	if cfg.QueryHashes["CoopResult"] != "11112222333344445555666677778888" {
		t.Errorf("CoopResult hash = %s", cfg.QueryHashes["CoopResult"])
	}
}

func TestParseWebViewDataMissingVersion(t *testing.T) {
	if _, err := parseWebViewData("no markers here"); err == nil {
		t.Error("expected error for a bundle without version markers")
	}
}

func TestWebViewProberFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := &config.PlatformConfig{
		SplatNet3URL:           srv.URL,
		FallbackWebViewVersion: "1.0.0-5644e7a2",
		WebViewConfigTTL:       time.Minute,
	}
	prober := newWebViewProber(cfg, srv.Client())

	got := prober.Get(context.Background())
	if got.Version != "1.0.0-5644e7a2" {
		t.Errorf("Version = %s, want the fallback", got.Version)
	}
	// the built-in query registry still applies
	if got.QueryHashes[models.QueryHomeQuery] != models.DefaultQueryHashes[models.QueryHomeQuery] {
		t.Errorf("QueryHashes missing default for %s", models.QueryHomeQuery)
	}
}

func TestWebViewProberServesLiveBundle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<script defer="defer" src="/static/js/main.abc123de.js"></script>`))
	})
	mux.HandleFunc("/static/js/main.abc123de.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleBundle))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &config.PlatformConfig{
		SplatNet3URL:           srv.URL,
		FallbackWebViewVersion: "1.0.0-5644e7a2",
		WebViewConfigTTL:       time.Minute,
	}
	prober := newWebViewProber(cfg, srv.Client())

	got := prober.Get(context.Background())
	if got.Version != "6.0.0-01234567" {
		t.Errorf("Version = %s, want the live bundle version", got.Version)
	}
	// live hashes override the built-in registry
	if got.QueryHashes[models.QueryLatestBattleHistories] != "aaaabbbbccccddddeeeeffff00001111" {
		t.Errorf("LatestBattleHistories hash = %s", got.QueryHashes[models.QueryLatestBattleHistories])
	}
	// queries absent from the bundle keep their defaults
	if got.QueryHashes[models.QueryVsHistoryDetail] != models.DefaultQueryHashes[models.QueryVsHistoryDetail] {
		t.Errorf("VsHistoryDetail hash = %s", got.QueryHashes[models.QueryVsHistoryDetail])
	}
}
