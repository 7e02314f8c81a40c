package report

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pricewatch/internal/alerting"
	"pricewatch/internal/analysis"
	"pricewatch/internal/quote"
)

// Options configure a Reporter. Empty paths disable that artifact.
type Options struct {
	PNGPath  string
	HTMLPath string
	Chart    ChartOptions
	Asset    string
	Window   int
}

// Reporter renders chart artifacts for every run and sends a notification
// when the run's alert is triggered. It makes no numeric decisions.
type Reporter struct {
	opts     Options
	notifier alerting.Notifier
	uploader Uploader
	logger   zerolog.Logger
}

// New constructs a Reporter. notifier and uploader may be nil.
func New(opts Options, notifier alerting.Notifier, uploader Uploader, logger zerolog.Logger) *Reporter {
	return &Reporter{
		opts:     opts,
		notifier: notifier,
		uploader: uploader,
		logger:   logger.With().Str("component", "reporter").Logger(),
	}
}

// Report renders charts, uploads them and notifies. A chart failure does not
// prevent the notification; every failure is returned as one *quote.ReportError.
func (r *Reporter) Report(ctx context.Context, runID string, records []analysis.TrendRecord, alert analysis.Alert) error {
	log := r.logger.With().Str("run_id", runID).Logger()
	var errs []error

	var artifacts []string
	render := func(kind, path string, write func(string, []analysis.TrendRecord, ChartOptions) error) {
		if path == "" {
			return
		}
		err := write(path, records, r.opts.Chart)
		switch {
		case errors.Is(err, ErrNotEnoughData):
			log.Info().Str("chart", kind).Int("records", len(records)).Msg("chart skipped: not enough data")
		case err != nil:
			errs = append(errs, &quote.ReportError{Op: kind + " chart", Err: err})
		default:
			artifacts = append(artifacts, path)
			log.Debug().Str("chart", kind).Str("path", path).Msg("chart written")
		}
	}
	render("png", r.opts.PNGPath, WritePNG)
	render("html", r.opts.HTMLPath, WriteHTML)

	if r.uploader != nil {
		for _, path := range artifacts {
			if _, err := r.uploader.Upload(ctx, path); err != nil {
				errs = append(errs, &quote.ReportError{Op: "upload", Err: err})
			}
		}
	}

	if alert.Triggered {
		if r.notifier == nil {
			log.Warn().Str("change", alert.ChangePct()).Msg("spike detected but no notifier configured")
		} else if err := r.notifier.Notify(ctx, r.notification(runID, records, alert)); err != nil {
			errs = append(errs, &quote.ReportError{Op: "notify", Err: err})
		} else {
			log.Info().Str("change", alert.ChangePct()).Msg("spike alert dispatched")
		}
	}

	return errors.Join(errs...)
}

func (r *Reporter) notification(runID string, records []analysis.TrendRecord, alert analysis.Alert) alerting.Notification {
	note := alerting.Notification{
		RunID:          runID,
		Asset:          r.opts.Asset,
		Previous:       alert.Previous,
		Current:        alert.Current,
		RelativeChange: alert.RelativeChange.Decimal,
		Threshold:      alert.Threshold,
		Window:         r.opts.Window,
	}
	if len(records) > 0 {
		last := records[len(records)-1]
		note.ObservedAt = last.ObservedAt
		note.Price = last.Price()
	}
	return note
}
