package report

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"pricewatch/internal/analysis"
)

// WriteHTML renders an interactive line chart to path. Records without a
// moving average leave a gap in that line.
func WriteHTML(path string, records []analysis.TrendRecord, o ChartOptions) error {
	s, err := buildSeries(records)
	if err != nil {
		return err
	}
	o = o.withDefaults()
	lo, hi := s.yBounds()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.Title,
			Width:     fmt.Sprintf("%dpx", o.Width),
			Height:    fmt.Sprintf("%dpx", o.Height),
		}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
			Min:   round(lo, 2),
			Max:   round(hi, 2),
		}),
	)

	labels := make([]string, len(records))
	prices := make([]opts.LineData, len(records))
	averages := make([]opts.LineData, len(records))
	for i, r := range records {
		labels[i] = "n/a"
		if !r.ObservedAt.IsZero() {
			labels[i] = r.ObservedAt.UTC().Format("01-02 15:04:05")
		}
		prices[i] = opts.LineData{Value: round(r.Price().InexactFloat64(), 4)}
		if r.MovingAverage.Valid {
			averages[i] = opts.LineData{Value: round(r.MovingAverage.Decimal.InexactFloat64(), 4)}
		} else {
			averages[i] = opts.LineData{Value: nil}
		}
	}

	line.SetXAxis(labels).
		AddSeries("Price", prices).
		AddSeries("Moving Average", averages)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := line.Render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
