package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/analysis"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/metrics"
	"pricewatch/internal/quote"
	"pricewatch/internal/storage"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubReporter struct {
	calls  int
	alerts []analysis.Alert
	err    error
}

func (r *stubReporter) Report(_ context.Context, _ string, _ []analysis.TrendRecord, alert analysis.Alert) error {
	r.calls++
	r.alerts = append(r.alerts, alert)
	return r.err
}

type stubLocker struct {
	acquired bool
	err      error
	released int
}

func (l *stubLocker) TryRunLock(context.Context) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

type failingStore struct {
	storage.HistoryStore
	appendErr error
	readErr   error
}

func (s failingStore) Append(ctx context.Context, obs quote.Observation) error {
	if s.appendErr != nil {
		return &quote.PersistenceError{Op: "append", Err: s.appendErr}
	}
	return s.HistoryStore.Append(ctx, obs)
}

func (s failingStore) ReadAll(ctx context.Context) ([]quote.Observation, error) {
	if s.readErr != nil {
		return nil, &quote.PersistenceError{Op: "read", Err: s.readErr}
	}
	return s.HistoryStore.ReadAll(ctx)
}

func priceAt(v string, minute int) quote.Observation {
	return quote.ParseObservation(v, base.Add(time.Duration(minute)*time.Minute), quote.TimeFromHeader)
}

func staticFetcher(obs quote.Observation) fetcher.FetchFunc {
	return func(context.Context) (quote.Observation, error) { return obs, nil }
}

func newPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	p, err := New(Options{Window: 2, Threshold: analysis.DefaultThreshold}, deps, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestRunSuccessTrace(t *testing.T) {
	store := storage.NewMemoryStore(priceAt("100", 0), priceAt("100", 5))
	reporter := &stubReporter{}
	m := metrics.New()
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("112", 10)), Store: store, Reporter: reporter, Metrics: m})

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{Idle, Fetching, Validating, Persisting, Analyzing, Detecting, Reporting, Idle}, res.Trace)
	assert.Equal(t, Idle, res.State)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Trend, 3)
	assert.True(t, res.Alert.Triggered)
	assert.True(t, res.Alert.RelativeChange.Decimal.Equal(decimal.RequireFromString("0.06")))
	assert.Equal(t, 1, reporter.calls)

	history, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestRunNoSpike(t *testing.T) {
	store := storage.NewMemoryStore(priceAt("100", 0), priceAt("100", 5))
	reporter := &stubReporter{}
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("106", 10)), Store: store, Reporter: reporter})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Alert.Triggered)
	assert.Equal(t, "3.00%", res.Alert.ChangePct())
	require.Len(t, reporter.alerts, 1)
	assert.False(t, reporter.alerts[0].Triggered)
}

func TestRunFirstObservationOnEmptyStore(t *testing.T) {
	store := storage.NewMemoryStore()
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("100", 0)), Store: store, Reporter: &stubReporter{}})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Trend, 1)
	assert.False(t, res.Trend[0].MovingAverage.Valid)
	assert.False(t, res.Alert.Triggered)
	assert.False(t, res.Alert.RelativeChange.Valid)
}

func TestRunFailurePerStage(t *testing.T) {
	boom := errors.New("boom")
	good := staticFetcher(priceAt("100", 0))

	tests := []struct {
		name     string
		deps     func() Deps
		stage    State
		target   any
		appended bool
	}{
		{
			name: "fetch",
			deps: func() Deps {
				return Deps{
					Fetcher: fetcher.FetchFunc(func(context.Context) (quote.Observation, error) {
						return quote.Observation{}, &quote.FetchError{Endpoint: "x", Err: boom}
					}),
					Store: storage.NewMemoryStore(), Reporter: &stubReporter{},
				}
			},
			stage:  Fetching,
			target: new(*quote.FetchError),
		},
		{
			name: "validate",
			deps: func() Deps {
				return Deps{Fetcher: staticFetcher(priceAt("0", 0)), Store: storage.NewMemoryStore(), Reporter: &stubReporter{}}
			},
			stage:  Validating,
			target: new(*quote.ValidationError),
		},
		{
			name: "persist",
			deps: func() Deps {
				return Deps{Fetcher: good, Store: failingStore{HistoryStore: storage.NewMemoryStore(), appendErr: boom}, Reporter: &stubReporter{}}
			},
			stage:  Persisting,
			target: new(*quote.PersistenceError),
		},
		{
			name: "analyze",
			deps: func() Deps {
				return Deps{Fetcher: good, Store: failingStore{HistoryStore: storage.NewMemoryStore(), readErr: boom}, Reporter: &stubReporter{}}
			},
			stage:    Analyzing,
			target:   new(*quote.PersistenceError),
			appended: true,
		},
		{
			name: "analyze corrupt history",
			deps: func() Deps {
				return Deps{Fetcher: good, Store: storage.NewMemoryStore(priceAt("abc", -5)), Reporter: &stubReporter{}}
			},
			stage:    Analyzing,
			target:   new(*quote.AnalysisError),
			appended: true,
		},
		{
			name: "report",
			deps: func() Deps {
				return Deps{Fetcher: good, Store: storage.NewMemoryStore(), Reporter: &stubReporter{err: &quote.ReportError{Op: "notify", Err: boom}}}
			},
			stage:    Reporting,
			target:   new(*quote.ReportError),
			appended: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			deps := tt.deps()
			deps.Metrics = m
			p := newPipeline(t, deps)

			res, err := p.Run(context.Background())
			require.Error(t, err)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.stage, stageErr.Stage)
			assert.ErrorAs(t, err, tt.target)

			assert.Equal(t, Failed, res.State)
			assert.Equal(t, tt.stage, res.Trace[len(res.Trace)-2])
			assert.Equal(t, Failed, res.Trace[len(res.Trace)-1])
			for _, s := range res.Trace[:len(res.Trace)-1] {
				assert.LessOrEqual(t, int(s), int(tt.stage), "no stage after the failing one may run")
			}

			if mem, ok := deps.Store.(*storage.MemoryStore); ok {
				history, _ := mem.ReadAll(context.Background())
				appended := false
				for _, h := range history {
					if h.ObservedAt.Equal(base) {
						appended = true
					}
				}
				assert.Equal(t, tt.appended, appended)
			}
		})
	}
}

func TestRunValidationFailureDoesNotAppend(t *testing.T) {
	store := storage.NewMemoryStore(priceAt("100", 0))
	reporter := &stubReporter{}
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("", 5)), Store: store, Reporter: reporter})

	_, err := p.Run(context.Background())
	var vErr *quote.ValidationError
	require.ErrorAs(t, err, &vErr)

	history, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Zero(t, reporter.calls)
}

func TestRunRecoversAfterFailure(t *testing.T) {
	calls := 0
	f := fetcher.FetchFunc(func(context.Context) (quote.Observation, error) {
		calls++
		if calls == 1 {
			return quote.Observation{}, &quote.FetchError{Endpoint: "x", Status: 503, Err: errors.New("unavailable")}
		}
		return priceAt("100", calls), nil
	})
	p := newPipeline(t, Deps{Fetcher: f, Store: storage.NewMemoryStore(), Reporter: &stubReporter{}})

	first, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, first.State)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, second.Trace[0])
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunSkippedWhenLockHeld(t *testing.T) {
	reporter := &stubReporter{}
	locker := &stubLocker{acquired: false}
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("100", 0)), Store: storage.NewMemoryStore(), Reporter: reporter, Locker: locker})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []State{Idle}, res.Trace)
	assert.Zero(t, reporter.calls)
}

func TestRunReleasesLock(t *testing.T) {
	locker := &stubLocker{acquired: true}
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("100", 0)), Store: storage.NewMemoryStore(), Reporter: &stubReporter{}, Locker: locker})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, locker.released)
}

func TestRunLockError(t *testing.T) {
	locker := &stubLocker{err: errors.New("redis down")}
	p := newPipeline(t, Deps{Fetcher: staticFetcher(priceAt("100", 0)), Store: storage.NewMemoryStore(), Reporter: &stubReporter{}, Locker: locker})

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, res.State)
}

func TestNewValidatesOptions(t *testing.T) {
	deps := Deps{Fetcher: staticFetcher(priceAt("1", 0)), Store: storage.NewMemoryStore(), Reporter: &stubReporter{}}

	_, err := New(Options{Window: -1}, deps, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Options{Window: 2, Threshold: decimal.NewFromInt(-1)}, deps, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Options{}, Deps{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "persisting", Persisting.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
