// Package notify implements the rate-limited operator notification channel
// for sink errors that aren't simple transient/uniqueness conditions.
//
// Grounded on the original Python logger's __write_to_slack/__last_error
// pair: a module-level timestamp gates how often a webhook post goes out,
// so a burst of identical failures produces at most one message per
// window. Expressed here with resty, the HTTP client the rest of the
// example pack reaches for webhook integrations.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier posts operator-facing messages to an external channel, at most
// once per configured interval.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// WebhookNotifier posts a Slack-compatible JSON payload ({"text": "..."})
// to a single webhook URL, silently dropping any notification requested
// within MinInterval of the last one actually sent.
type WebhookNotifier struct {
	client      *resty.Client
	webhookURL  string
	minInterval time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

// NewWebhookNotifier builds a WebhookNotifier. If webhookURL is empty,
// Notify becomes a no-op (useful for environments with no configured
// operator channel).
func NewWebhookNotifier(webhookURL string, minInterval time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client:      resty.New().SetTimeout(5 * time.Second),
		webhookURL:  webhookURL,
		minInterval: minInterval,
	}
}

// Notify posts message to the webhook, unless one was already sent within
// the rate-limit window or no webhook URL is configured, in which case it
// returns nil without making a request.
func (n *WebhookNotifier) Notify(ctx context.Context, message string) error {
	if n.webhookURL == "" {
		return nil
	}

	n.mu.Lock()
	if !n.lastSent.IsZero() && time.Since(n.lastSent) < n.minInterval {
		n.mu.Unlock()
		return nil
	}
	n.lastSent = time.Now()
	n.mu.Unlock()

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": message}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: webhook returned %s", resp.Status())
	}
	return nil
}

// LogNotifier logs messages instead of posting them, for local development
// or when no webhook is configured but a Notifier value is still required
// by a caller's interface.
type LogNotifier struct{}

// Notify logs message through the standard logger.
func (LogNotifier) Notify(ctx context.Context, message string) error {
	log.Printf("notify: %s", message)
	return nil
}
