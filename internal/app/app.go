package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alerting"
	"pricewatch/internal/config"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/metrics"
	"pricewatch/internal/pipeline"
	"pricewatch/internal/report"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/storage"
	"pricewatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tabular command output.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newFetcher() fetcher.QuoteFetcher {
	userAgent := a.Config.Provider.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return fetcher.NewHTTP(fetcher.HTTPOptions{
		URL:           a.Config.Provider.URL,
		PricePath:     a.Config.Provider.PricePath,
		TimestampPath: a.Config.Provider.TimestampPath,
		Timeout:       a.Config.Provider.RequestTimeout,
		UserAgent:     userAgent,
		RateLimit:     a.Config.Provider.RateLimit,
	}, a.Logger)
}

// newNotifier fans out to every enabled channel. It returns nil when
// alerting is off or no channel is enabled.
func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil
	}

	var channels []alerting.Channel
	if cfg.Log.Enabled {
		channels = append(channels, alerting.Channel{Name: "log", Notifier: alerting.NewLogNotifier(a.Logger)})
	}
	if cfg.Email.Enabled {
		channels = append(channels, alerting.Channel{Name: "email", Notifier: alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Timeout:  cfg.Timeout,
		}, a.Logger)})
	}
	if cfg.Telegram.Enabled {
		channels = append(channels, alerting.Channel{
			Name:     "telegram",
			Notifier: alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger),
		})
	}
	if cfg.Webhook.Enabled {
		channels = append(channels, alerting.Channel{
			Name:     "webhook",
			Notifier: alerting.NewWebhookNotifier(cfg.Webhook.URL, cfg.Timeout, a.Logger),
		})
	}

	multi := alerting.NewMulti(channels...)
	if multi.Len() == 0 {
		return nil
	}
	a.Logger.Debug().Strs("channels", multi.Names()).Msg("alert channels configured")
	return multi
}

func (a *App) chartOptions() report.ChartOptions {
	return report.ChartOptions{
		Title:  a.Config.Report.Title,
		Width:  a.Config.Report.Width,
		Height: a.Config.Report.Height,
	}
}

func (a *App) newReporter(ctx context.Context, notifier alerting.Notifier, withCharts bool) (*report.Reporter, error) {
	opts := report.Options{
		Chart:  a.chartOptions(),
		Asset:  a.Config.App.Asset,
		Window: a.Config.Analysis.WindowSize,
	}
	var uploader report.Uploader
	if withCharts {
		opts.PNGPath = a.Config.Report.ChartPath
		opts.HTMLPath = a.Config.Report.HTMLPath
		if a.Config.Report.S3.Enabled {
			s3, err := report.NewS3Uploader(ctx, a.Config.Report.S3, a.Logger)
			if err != nil {
				return nil, err
			}
			uploader = s3
		}
	}
	return report.New(opts, notifier, uploader, a.Logger), nil
}

func (a *App) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Window:    a.Config.Analysis.WindowSize,
		Threshold: decimal.NewFromFloat(a.Config.Analysis.Threshold),
		TailSize:  a.Config.Analysis.TailSize,
	}
}

// newPipeline wires the configured store, fetcher, reporter and run lock.
// The returned closer releases everything that was opened.
func (a *App) newPipeline(ctx context.Context, m *metrics.Metrics) (*pipeline.Pipeline, func(), error) {
	store, err := storage.Open(ctx, a.Config)
	if err != nil {
		return nil, nil, err
	}
	locker, closeLocker, err := storage.OpenLocker(ctx, a.Config, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		closeLocker()
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close history store")
		}
	}

	reporter, err := a.newReporter(ctx, a.newNotifier(), true)
	if err != nil {
		closer()
		return nil, nil, err
	}

	p, err := pipeline.New(a.pipelineOptions(), pipeline.Deps{
		Fetcher:  a.newFetcher(),
		Store:    store,
		Reporter: reporter,
		Locker:   locker,
		Metrics:  m,
	}, a.Logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return p, closer, nil
}

// Run executes the long-running collection service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		m = metrics.New()
		srv := metrics.NewServer(a.Config.Metrics.Listen, a.Config.Metrics.Path, m, a.Logger)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				a.Logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	p, closePipeline, err := a.newPipeline(ctx, m)
	if err != nil {
		return err
	}
	defer closePipeline()

	sched, err := scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
		RunOnStart:    a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("provider", a.Config.Provider.URL).
		Str("backend", a.Config.History.Backend).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting price collection service")

	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := p.Run(ctx)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price collection service stopped")
	return nil
}

// Once performs exactly one pipeline run.
func (a *App) Once(ctx context.Context) (pipeline.Result, error) {
	p, closePipeline, err := a.newPipeline(ctx, nil)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer closePipeline()
	return p.Run(ctx)
}

// ExportOptions hold parameters for exporting the history.
type ExportOptions struct {
	CSVPath     string
	PNGPath     string
	HTMLPath    string
	ParquetPath string
	MaxPoints   int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ImportOptions configure the import command.
type ImportOptions struct {
	CSVPath string
	DryRun  bool
}
