// Package notify delivers out-of-band operator notifications through a
// generic JSON webhook.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	"github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/logging"
)

// Notifier sends one operator-facing message.
type Notifier interface {
	Notify(ctx context.Context, title string, message string) error
}

// WebhookNotifier posts notifications as JSON to a configured URL.
// With no URL configured it logs and drops them.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg *config.NotifyConfig, logger *logging.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Notify delivers one message. Failures are returned but callers treat
// notification as best-effort.
func (n *WebhookNotifier) Notify(ctx context.Context, title string, message string) error {
	if n.url == "" {
		n.logger.WithField("title", title).Info(message)
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"title":   title,
		"message": message,
	})
	if err != nil {
		return errors.NewInternalError("marshal notification", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.NewProviderError("webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewProviderStatusError("webhook", resp.StatusCode, "")
	}
	return nil
}
