package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec // labels: outcome=success|failed|skipped
	StageFailuresTotal *prometheus.CounterVec // labels: stage
	RunDuration        prometheus.Histogram
	LastPrice          prometheus.Gauge
	LastMovingAverage  prometheus.Gauge
	SpikesTotal        prometheus.Counter
	HistoryLength      prometheus.Gauge

	mu          sync.RWMutex
	lastSuccess time.Time
	lastFailure time.Time
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		StageFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_stage_failures_total",
			Help: "Pipeline runs that failed, by stage",
		}, []string{"stage"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Wall time of one pipeline run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_last_price",
			Help: "Most recently persisted price",
		}),
		LastMovingAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_last_moving_average",
			Help: "Moving average of the latest record, when defined",
		}),
		SpikesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_spikes_total",
			Help: "Runs whose spike detector triggered",
		}),
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_history_length",
			Help: "Number of observations in the history store",
		}),
	}
	m.registry.MustRegister(
		m.RunsTotal,
		m.StageFailuresTotal,
		m.RunDuration,
		m.LastPrice,
		m.LastMovingAverage,
		m.SpikesTotal,
		m.HistoryLength,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RunSucceeded records a completed run.
func (m *Metrics) RunSucceeded(d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.RunDuration.Observe(d.Seconds())
	m.mu.Lock()
	m.lastSuccess = time.Now().UTC()
	m.mu.Unlock()
}

// RunFailed records a run that stopped at stage.
func (m *Metrics) RunFailed(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("failed").Inc()
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.mu.Lock()
	m.lastFailure = time.Now().UTC()
	m.mu.Unlock()
}

// RunSkipped records a run that did not obtain the run lock.
func (m *Metrics) RunSkipped() {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues("skipped").Inc()
}

// ObserveTrend updates the gauges from the latest analysed record.
func (m *Metrics) ObserveTrend(historyLen int, price float64, movingAverage float64, defined bool) {
	if m == nil {
		return
	}
	m.HistoryLength.Set(float64(historyLen))
	m.LastPrice.Set(price)
	if defined {
		m.LastMovingAverage.Set(movingAverage)
	}
}

// SpikeDetected counts a triggered alert.
func (m *Metrics) SpikeDetected() {
	if m == nil {
		return
	}
	m.SpikesTotal.Inc()
}

type healthStatus struct {
	Status      string     `json:"status"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// ServeHTTP reports the last run outcomes. The service is "degraded" when
// the most recent run failed.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	success, failure := m.lastSuccess, m.lastFailure
	m.mu.RUnlock()

	status := healthStatus{Status: "ok"}
	if !success.IsZero() {
		status.LastSuccess = &success
	}
	if !failure.IsZero() {
		status.LastFailure = &failure
		if failure.After(success) {
			status.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Server exposes metrics and a health endpoint over HTTP.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer builds the HTTP server; path defaults to /metrics.
func NewServer(addr, path string, m *Metrics, logger zerolog.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", m)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
