package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert at warn level.
func (l *LogNotifier) Notify(_ context.Context, note Notification) error {
	l.logger.Warn().
		Str("run_id", note.RunID).
		Time("observed_at", note.ObservedAt).
		Str("price", note.Price.String()).
		Str("relative_change", note.RelativeChange.String()).
		Str("threshold", note.Threshold.String()).
		Bool("test", note.Test).
		Msg(note.Subject())
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
