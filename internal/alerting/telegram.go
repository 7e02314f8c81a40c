package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts through the Bot API sendMessage method.
type TelegramNotifier struct {
	endpoint string
	chatID   string
	client   *http.Client
	logger   zerolog.Logger
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramReply struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramNotifier builds a notifier for one chat. An empty baseURL
// selects the public Bot API.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = defaultTelegramAPI
	}

	return &TelegramNotifier{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(baseURL, "/"), botToken),
		chatID:   chatID,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Str("chat_id", chatID).Logger(),
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(telegramMessage{ChatID: n.chatID, Text: renderMessage(note)})
	if err != nil {
		return fmt.Errorf("telegram: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// the request URL carries the bot token
		return fmt.Errorf("telegram: sendMessage: %w", redactURL(err))
	}
	defer resp.Body.Close()

	var reply telegramReply
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)

	switch {
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		if decodeErr == nil && reply.Description != "" {
			return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, reply.Description)
		}
		return fmt.Errorf("telegram: status %d", resp.StatusCode)
	case decodeErr == nil && !reply.OK:
		return fmt.Errorf("telegram: rejected (code %d): %s", reply.ErrorCode, reply.Description)
	}

	n.logger.Info().Str("run_id", note.RunID).Bool("test", note.Test).Msg("alert sent (telegram)")
	return nil
}

func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

var _ Notifier = (*TelegramNotifier)(nil)
