package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch/internal/alerting"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/pipeline"
	"pricewatch/internal/quote"
	"pricewatch/internal/storage"
)

// SimulateAlert runs the pipeline over a synthetic history held in memory.
// All values but the last seed the history; the last one is served as the
// fetched quote. Charts are not written and the real store is untouched.
func (a *App) SimulateAlert(ctx context.Context, values []decimal.Decimal) (pipeline.Result, error) {
	if len(values) == 0 {
		return pipeline.Result{}, errors.New("at least one value is required")
	}
	if !a.Config.Alerting.Enabled {
		return pipeline.Result{}, errors.New("alerting is disabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return pipeline.Result{}, errors.New("no alert channel is enabled")
	}

	step := a.Config.Scheduler.Interval
	if step <= 0 {
		step = time.Minute
	}
	now := time.Now().UTC()
	start := now.Add(-time.Duration(len(values)-1) * step)

	seed := make([]quote.Observation, 0, len(values)-1)
	for i, v := range values[:len(values)-1] {
		seed = append(seed, quote.NewObservation(v, start.Add(time.Duration(i)*step)))
	}
	latest := quote.NewObservation(values[len(values)-1], now)

	return a.simulate(ctx, storage.NewMemoryStore(seed...), latest, notifier)
}

func (a *App) simulate(ctx context.Context, store storage.HistoryStore, latest quote.Observation, notifier alerting.Notifier) (pipeline.Result, error) {
	reporter, err := a.newReporter(ctx, notifier, false)
	if err != nil {
		return pipeline.Result{}, err
	}
	p, err := pipeline.New(a.pipelineOptions(), pipeline.Deps{
		Fetcher: fetcher.FetchFunc(func(context.Context) (quote.Observation, error) {
			return latest, nil
		}),
		Store:    store,
		Reporter: reporter,
	}, a.Logger)
	if err != nil {
		return pipeline.Result{}, err
	}
	return p.Run(ctx)
}
