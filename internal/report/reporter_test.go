package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/alerting"
	"pricewatch/internal/analysis"
	"pricewatch/internal/quote"
)

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	n.notes = append(n.notes, note)
	return n.err
}

type recordingUploader struct {
	paths []string
}

func (u *recordingUploader) Upload(_ context.Context, path string) (string, error) {
	u.paths = append(u.paths, path)
	return "mem://" + filepath.Base(path), nil
}

func trend(t *testing.T, values ...int64) []analysis.TrendRecord {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := make([]quote.Observation, len(values))
	for i, v := range values {
		history[i] = quote.NewObservation(decimal.NewFromInt(v), base.Add(time.Duration(i)*5*time.Minute))
	}
	records, err := analysis.Trend(history, analysis.DefaultWindow)
	require.NoError(t, err)
	return records
}

func detect(t *testing.T, records []analysis.TrendRecord) analysis.Alert {
	t.Helper()
	alert, err := analysis.Detect(records, analysis.DefaultThreshold)
	require.NoError(t, err)
	return alert
}

func TestReportWritesChartsAndNotifiesOnSpike(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{}
	uploader := &recordingUploader{}
	r := New(Options{
		PNGPath:  filepath.Join(dir, "trend.png"),
		HTMLPath: filepath.Join(dir, "charts", "trend.html"),
		Asset:    "bitcoin",
		Window:   2,
	}, notifier, uploader, zerolog.Nop())

	records := trend(t, 100, 100, 112)
	alert := detect(t, records)
	require.True(t, alert.Triggered)

	require.NoError(t, r.Report(context.Background(), "run-1", records, alert))

	png, err := os.ReadFile(filepath.Join(dir, "trend.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"), "PNG signature expected")

	html, err := os.ReadFile(filepath.Join(dir, "charts", "trend.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Moving Average")

	assert.Len(t, uploader.paths, 2)
	require.Len(t, notifier.notes, 1)
	note := notifier.notes[0]
	assert.Equal(t, "run-1", note.RunID)
	assert.True(t, note.Price.Equal(decimal.NewFromInt(112)))
	assert.True(t, note.RelativeChange.Equal(decimal.RequireFromString("0.06")))
}

func TestReportNoSpikeNoNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	r := New(Options{PNGPath: filepath.Join(t.TempDir(), "trend.png")}, notifier, nil, zerolog.Nop())

	records := trend(t, 100, 100, 106)
	require.NoError(t, r.Report(context.Background(), "run-2", records, detect(t, records)))
	assert.Empty(t, notifier.notes)
}

func TestReportSkipsChartForSingleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.png")
	r := New(Options{PNGPath: path}, nil, nil, zerolog.Nop())

	records := trend(t, 100)
	require.NoError(t, r.Report(context.Background(), "run-3", records, detect(t, records)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no chart should be written for a single record")
}

func TestReportFlatHistoryStillRenders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.png")
	require.NoError(t, WritePNG(path, trend(t, 100, 100, 100, 100), ChartOptions{}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestReportChartFailureDoesNotSuppressAlert(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	notifier := &recordingNotifier{}
	r := New(Options{PNGPath: filepath.Join(blocker, "trend.png")}, notifier, nil, zerolog.Nop())

	records := trend(t, 100, 100, 112)
	err := r.Report(context.Background(), "run-4", records, detect(t, records))
	require.Error(t, err)

	var reportErr *quote.ReportError
	require.ErrorAs(t, err, &reportErr)
	assert.Equal(t, "png chart", reportErr.Op)
	assert.Len(t, notifier.notes, 1)
}

func TestReportNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	r := New(Options{}, notifier, nil, zerolog.Nop())

	records := trend(t, 100, 100, 112)
	err := r.Report(context.Background(), "run-5", records, detect(t, records))

	var reportErr *quote.ReportError
	require.ErrorAs(t, err, &reportErr)
	assert.Equal(t, "notify", reportErr.Op)
}

func TestBuildSeriesRejectsSingleInstant(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records, err := analysis.Trend([]quote.Observation{
		quote.NewObservation(decimal.NewFromInt(1), at),
		quote.NewObservation(decimal.NewFromInt(2), at),
	}, 2)
	require.NoError(t, err)

	_, err = buildSeries(records)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestBuildSeriesSkipsUndatedRecords(t *testing.T) {
	records := trend(t, 100, 101, 102, 103)
	records[1].ObservedAt = time.Time{}

	s, err := buildSeries(records)
	require.NoError(t, err)
	assert.Len(t, s.times, 3)
	assert.Equal(t, []float64{100, 102, 103}, s.prices)
	for _, ts := range s.times {
		assert.False(t, ts.IsZero())
	}
}
