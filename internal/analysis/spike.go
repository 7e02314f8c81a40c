package analysis

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/quote"
)

// DefaultThreshold is the relative rise that counts as a spike (5%).
var DefaultThreshold = decimal.RequireFromString("0.05")

// Alert is the spike classification for one run. It is never persisted.
type Alert struct {
	Triggered bool
	// RelativeChange is invalid when fewer than two records exist or the
	// previous statistic is zero.
	RelativeChange decimal.NullDecimal
	Previous       decimal.Decimal
	Current        decimal.Decimal
	Threshold      decimal.Decimal
}

// Detect compares the statistic of the last two records. Only upward moves
// above the threshold trigger; falls never do.
func Detect(records []TrendRecord, threshold decimal.Decimal) (Alert, error) {
	if len(records) == 0 {
		return Alert{}, &quote.AnalysisError{Index: -1, Reason: "spike detection needs at least one record"}
	}

	alert := Alert{Threshold: threshold, Current: records[len(records)-1].Statistic()}
	if len(records) < 2 {
		return alert, nil
	}

	alert.Previous = records[len(records)-2].Statistic()
	if alert.Previous.IsZero() {
		return alert, nil
	}

	change := alert.Current.Sub(alert.Previous).Div(alert.Previous)
	alert.RelativeChange = decimal.NewNullDecimal(change)
	alert.Triggered = change.GreaterThan(threshold)
	return alert, nil
}

// ChangePct returns the relative change in percent, or "n/a".
func (a Alert) ChangePct() string {
	if !a.RelativeChange.Valid {
		return "n/a"
	}
	return a.RelativeChange.Decimal.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
