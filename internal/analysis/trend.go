// Package analysis derives the moving-average trend over the full history
// and classifies the latest change of that trend.
package analysis

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/quote"
)

// DefaultWindow is the moving-average window used when none is configured.
const DefaultWindow = 2

// TrendRecord is an observation paired with its trailing moving average.
// MovingAverage is invalid for the first window-1 records.
type TrendRecord struct {
	quote.Observation
	MovingAverage decimal.NullDecimal
}

// Statistic is the moving average when defined, else the raw value.
func (r TrendRecord) Statistic() decimal.Decimal {
	if r.MovingAverage.Valid {
		return r.MovingAverage.Decimal
	}
	return r.Value.Decimal
}

// Trend computes one record per observation, in the same order.
// Observations are taken in arrival order; a zero ObservedAt is not an
// error here.
//
// Each defined average re-sums its own window. Windows are small, and this
// keeps every value exactly the mean of its inputs no matter how long the
// history grows.
func Trend(history []quote.Observation, window int) ([]TrendRecord, error) {
	if window < 1 {
		return nil, &quote.AnalysisError{Index: -1, Reason: "window size must be at least 1"}
	}

	records := make([]TrendRecord, len(history))
	divisor := decimal.NewFromInt(int64(window))
	for i, obs := range history {
		if !obs.Value.Valid {
			return nil, &quote.AnalysisError{Index: i, Reason: "non-numeric value " + quoteRaw(obs.Raw)}
		}
		records[i] = TrendRecord{Observation: obs}
		if i < window-1 {
			continue
		}
		sum := decimal.Zero
		for j := i - window + 1; j <= i; j++ {
			sum = sum.Add(history[j].Value.Decimal)
		}
		records[i].MovingAverage = decimal.NewNullDecimal(sum.Div(divisor))
	}
	return records, nil
}

func quoteRaw(raw string) string {
	if raw == "" {
		return "(missing)"
	}
	return "\"" + raw + "\""
}

// DefinedCount returns how many records carry a moving average.
func DefinedCount(records []TrendRecord) int {
	n := 0
	for _, r := range records {
		if r.MovingAverage.Valid {
			n++
		}
	}
	return n
}

// Tail returns at most the last n records.
func Tail(records []TrendRecord, n int) []TrendRecord {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
