package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// notifyTimeout bounds a single notification attempt. The channel is a
// best-effort convenience; a slow webhook must not stall the health check.
const notifyTimeout = 10 * time.Second

// Notifier delivers a message to the operator's notification channel.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Compile-time interface check.
var _ Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier POSTs alerts as JSON to a configured webhook URL
// (ntfy, Gotify, Slack-compatible endpoints all accept this shape).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier returns a notifier for the given URL, or nil when the
// URL is empty, which the dispatcher treats as "channel not configured".
func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: notifyTimeout},
	}
}

// Notify delivers one message. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, subject, message string) error {
	payload, err := json.Marshal(map[string]string{
		"title":   subject,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: unexpected status %d", resp.StatusCode)
	}
	return nil
}
