// Package report renders trend charts and dispatches spike notifications.
package report

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pricewatch/internal/analysis"
)

// ErrNotEnoughData is returned when a chart would have no visible extent:
// fewer than two records, or every record at the same instant.
var ErrNotEnoughData = errors.New("not enough data points to draw a chart")

// ChartOptions size and label a rendered chart.
type ChartOptions struct {
	Title  string
	Width  int
	Height int
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Title == "" {
		o.Title = "Price Trend"
	}
	return o
}

// series splits records into the raw price line and the defined part of the
// moving-average line.
type series struct {
	times    []time.Time
	prices   []float64
	maTimes  []time.Time
	averages []float64
}

// buildSeries drops records without a timestamp, which legacy files may
// hold; they still count for the moving average but have no place on a
// time axis.
func buildSeries(records []analysis.TrendRecord) (series, error) {
	dated := make([]analysis.TrendRecord, 0, len(records))
	for _, r := range records {
		if !r.ObservedAt.IsZero() {
			dated = append(dated, r)
		}
	}
	if len(dated) < 2 || !dated[len(dated)-1].ObservedAt.After(dated[0].ObservedAt) {
		return series{}, ErrNotEnoughData
	}
	s := series{
		times:  make([]time.Time, len(dated)),
		prices: make([]float64, len(dated)),
	}
	for i, r := range dated {
		s.times[i] = r.ObservedAt
		s.prices[i] = r.Price().InexactFloat64()
		if r.MovingAverage.Valid {
			s.maTimes = append(s.maTimes, r.ObservedAt)
			s.averages = append(s.averages, r.MovingAverage.Decimal.InexactFloat64())
		}
	}
	return s, nil
}

// yBounds pads the price extent so a flat history still has a drawable axis.
func (s series) yBounds() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range append(append([]float64{}, s.prices...), s.averages...) {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	padding := (hi - lo) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(hi)*0.01)
	}
	return lo - padding, hi + padding
}

// WritePNG renders the price and moving-average series to path, replacing
// any previous file.
func WritePNG(path string, records []analysis.TrendRecord, opts ChartOptions) error {
	s, err := buildSeries(records)
	if err != nil {
		return err
	}
	opts = opts.withDefaults()
	lo, hi := s.yBounds()

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: s.times,
				YValues: s.prices,
			},
		},
	}
	if len(s.averages) >= 2 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Moving Average",
			XValues: s.maTimes,
			YValues: s.averages,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
