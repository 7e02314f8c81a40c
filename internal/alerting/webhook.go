package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookNotifier posts alerts as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "alert_webhook").Logger(),
	}
}

type webhookPayload struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	RunID          string `json:"run_id,omitempty"`
	Asset          string `json:"asset,omitempty"`
	ObservedAt     string `json:"observed_at"`
	Price          string `json:"price"`
	RelativeChange string `json:"relative_change"`
	Threshold      string `json:"threshold"`
	Test           bool   `json:"test,omitempty"`
}

// Notify posts the notification.
func (w *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(webhookPayload{
		Title:          note.Subject(),
		Message:        renderMessage(note),
		RunID:          note.RunID,
		Asset:          note.Asset,
		ObservedAt:     note.ObservedAt.UTC().Format(time.RFC3339Nano),
		Price:          note.Price.String(),
		RelativeChange: note.RelativeChange.String(),
		Threshold:      note.Threshold.String(),
		Test:           note.Test,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	w.logger.Info().Str("run_id", note.RunID).Msg("alert sent (webhook)")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
