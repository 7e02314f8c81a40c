package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"pricewatch/internal/analysis"
)

// Show prints the tail of the trend table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	records, err := a.loadTrend(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no observations recorded")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPrice\tMoving Avg")
	for _, r := range analysis.Tail(records, limit) {
		ma := "-"
		if r.MovingAverage.Valid {
			ma = r.MovingAverage.Decimal.StringFixed(2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", formatTime(r.ObservedAt, time.RFC3339), r.Price().StringFixed(2), ma)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "%d observations, %d with a moving average (window %d)\n",
		len(records), analysis.DefinedCount(records), a.Config.Analysis.WindowSize)
	return nil
}

// formatTime renders legacy rows without a timestamp as "-".
func formatTime(ts time.Time, layout string) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(layout)
}
