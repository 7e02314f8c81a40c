package app

import (
	"context"
	"errors"
	"time"

	"pricewatch/internal/alerting"
)

// NotifyTest sends a test message through every enabled channel.
func (a *App) NotifyTest(ctx context.Context) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("alerting is disabled or no channel is enabled")
	}
	return notifier.Notify(ctx, alerting.Notification{
		Asset:      a.Config.App.Asset,
		ObservedAt: time.Now().UTC(),
		Window:     a.Config.Analysis.WindowSize,
		Test:       true,
	})
}
