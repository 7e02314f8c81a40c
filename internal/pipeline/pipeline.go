// Package pipeline runs the fetch, validate, persist, analyze, detect and
// report stages in fixed order, once per invocation of Run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/analysis"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/metrics"
	"pricewatch/internal/quote"
	"pricewatch/internal/storage"
)

// Reporter receives the analysed history and the alert of each run.
type Reporter interface {
	Report(ctx context.Context, runID string, records []analysis.TrendRecord, alert analysis.Alert) error
}

// Options tune the analysis stages.
type Options struct {
	Window    int
	Threshold decimal.Decimal
	// TailSize is how many trend records are logged at debug level.
	TailSize int
}

// Deps are the collaborators of a pipeline. Locker and Metrics are optional.
type Deps struct {
	Fetcher  fetcher.QuoteFetcher
	Store    storage.HistoryStore
	Reporter Reporter
	Locker   storage.RunLocker
	Metrics  *metrics.Metrics
}

// Result describes one run. It is returned and logged, never persisted.
type Result struct {
	RunID string
	State State
	// Trace lists every state the run passed through, starting at Idle.
	Trace []State
	// Skipped is set when another process held the run lock.
	Skipped     bool
	Observation quote.Observation
	History     []quote.Observation
	Trend       []analysis.TrendRecord
	Alert       analysis.Alert
	Err         error
}

// Pipeline executes runs. It is safe to call Run repeatedly but not
// concurrently against the same store without a Locker.
type Pipeline struct {
	opts   Options
	deps   Deps
	stages []stage
	newID  func() string
	logger zerolog.Logger
}

type stage struct {
	state State
	run   func(ctx context.Context, res *Result) error
}

// New wires a pipeline. Fetcher, Store and Reporter are required.
func New(opts Options, deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	if deps.Fetcher == nil || deps.Store == nil || deps.Reporter == nil {
		return nil, errors.New("pipeline requires a fetcher, a store and a reporter")
	}
	if opts.Window == 0 {
		opts.Window = analysis.DefaultWindow
	}
	if opts.TailSize <= 0 {
		opts.TailSize = 5
	}
	if opts.Window < 1 {
		return nil, fmt.Errorf("window size must be at least 1, got %d", opts.Window)
	}
	if opts.Threshold.IsNegative() {
		return nil, fmt.Errorf("spike threshold must not be negative, got %s", opts.Threshold)
	}

	p := &Pipeline{
		opts:   opts,
		deps:   deps,
		newID:  uuid.NewString,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
	p.stages = []stage{
		{Fetching, p.fetch},
		{Validating, p.validate},
		{Persisting, p.persist},
		{Analyzing, p.analyze},
		{Detecting, p.detect},
		{Reporting, p.report},
	}
	return p, nil
}

// Run executes one pass. The returned error is a *StageError when a stage
// failed; a skipped run returns no error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: p.newID(), State: Idle, Trace: []State{Idle}}
	log := p.logger.With().Str("run_id", res.RunID).Logger()
	ctx = log.WithContext(ctx)

	if p.deps.Locker != nil {
		unlock, acquired, err := p.deps.Locker.TryRunLock(ctx)
		if err != nil {
			res.Err = fmt.Errorf("acquire run lock: %w", err)
			res.State = Failed
			res.Trace = append(res.Trace, Failed)
			log.Error().Err(res.Err).Msg("run aborted")
			return res, res.Err
		}
		if !acquired {
			res.Skipped = true
			p.deps.Metrics.RunSkipped()
			log.Debug().Msg("skip run because run lock held elsewhere")
			return res, nil
		}
		defer unlock()
	}

	started := time.Now()
	for _, st := range p.stages {
		res.State = st.state
		res.Trace = append(res.Trace, st.state)
		if err := st.run(ctx, &res); err != nil {
			res.Err = &StageError{Stage: st.state, Err: err}
			res.State = Failed
			res.Trace = append(res.Trace, Failed)
			p.deps.Metrics.RunFailed(st.state.String(), time.Since(started))
			log.Error().Err(err).Str("stage", st.state.String()).Msg("run failed")
			return res, res.Err
		}
	}

	res.State = Idle
	res.Trace = append(res.Trace, Idle)
	p.deps.Metrics.RunSucceeded(time.Since(started))

	evt := log.Info().
		Str("price", res.Observation.Price().String()).
		Time("observed_at", res.Observation.ObservedAt).
		Int("history", len(res.History)).
		Str("change", res.Alert.ChangePct()).
		Bool("spike", res.Alert.Triggered)
	if n := len(res.Trend); n > 0 && res.Trend[n-1].MovingAverage.Valid {
		evt = evt.Str("moving_average", res.Trend[n-1].MovingAverage.Decimal.StringFixed(2))
	}
	evt.Dur("took", time.Since(started)).Msg("run complete")
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, res *Result) error {
	obs, err := p.deps.Fetcher.FetchQuote(ctx)
	res.Observation = obs
	return err
}

func (p *Pipeline) validate(_ context.Context, res *Result) error {
	obs, err := quote.Validate(res.Observation)
	if err != nil {
		return err
	}
	res.Observation = obs
	return nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	return p.deps.Store.Append(ctx, res.Observation)
}

func (p *Pipeline) analyze(ctx context.Context, res *Result) error {
	history, err := p.deps.Store.ReadAll(ctx)
	if err != nil {
		return err
	}
	records, err := analysis.Trend(history, p.opts.Window)
	if err != nil {
		return err
	}
	res.History = history
	res.Trend = records

	log := zerolog.Ctx(ctx)
	for _, r := range analysis.Tail(records, p.opts.TailSize) {
		ma := "-"
		if r.MovingAverage.Valid {
			ma = r.MovingAverage.Decimal.StringFixed(2)
		}
		log.Debug().
			Time("observed_at", r.ObservedAt).
			Str("price", r.Price().StringFixed(2)).
			Str("moving_average", ma).
			Msg("trend tail")
	}

	if n := len(records); n > 0 {
		last := records[n-1]
		p.deps.Metrics.ObserveTrend(n, last.Price().InexactFloat64(),
			last.MovingAverage.Decimal.InexactFloat64(), last.MovingAverage.Valid)
	}
	return nil
}

func (p *Pipeline) detect(ctx context.Context, res *Result) error {
	alert, err := analysis.Detect(res.Trend, p.opts.Threshold)
	if err != nil {
		return err
	}
	res.Alert = alert
	if alert.Triggered {
		p.deps.Metrics.SpikeDetected()
		zerolog.Ctx(ctx).Warn().Str("change", alert.ChangePct()).Msg("spike detected")
	}
	return nil
}

func (p *Pipeline) report(ctx context.Context, res *Result) error {
	return p.deps.Reporter.Report(ctx, res.RunID, res.Trend, res.Alert)
}
