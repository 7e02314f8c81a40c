package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Notification carries everything a channel needs to describe one alert.
type Notification struct {
	RunID          string
	Asset          string
	ObservedAt     time.Time
	Price          decimal.Decimal
	Previous       decimal.Decimal
	Current        decimal.Decimal
	RelativeChange decimal.Decimal
	Threshold      decimal.Decimal
	Window         int
	Test           bool
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Subject returns a one-line summary used as email subject and log message.
func (n Notification) Subject() string {
	asset := strings.ToUpper(n.Asset)
	if asset == "" {
		asset = "PRICE"
	}
	if n.Test {
		return fmt.Sprintf("[%s] pricewatch test notification", asset)
	}
	return fmt.Sprintf("[%s] ALERT: Significant price spike detected (+%s%%)", asset, pct(n.RelativeChange))
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(note.Subject())
	builder.WriteString("\n")
	if note.Test {
		builder.WriteString("This is a test message to confirm alert delivery is configured.\n")
		return builder.String()
	}
	builder.WriteString(fmt.Sprintf("Observed: %s UTC\n", note.ObservedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Price: %s\n", note.Price.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Moving average (window %d): %s -> %s\n", note.Window, note.Previous.StringFixed(2), note.Current.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Change: %s%% (threshold %s%%)\n", pct(note.RelativeChange), pct(note.Threshold)))
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	}
	return builder.String()
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2)
}
