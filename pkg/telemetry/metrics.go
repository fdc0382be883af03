package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openfroyo/anlchain/pkg/engine"
)

// Metrics provides Prometheus metrics for analysis runs.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	phaseDuration *prometheus.HistogramVec
	phaseStatus   *prometheus.CounterVec

	eventsAnalyzed prometheus.Counter
	moduleOutcomes *prometheus.CounterVec
	gateRejections prometheus.Counter

	activeRuns        prometheus.Gauge
	chainModules      prometheus.Gauge
	committedCommands prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector. A disabled configuration
// returns a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.PhaseBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of analysis runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of analysis runs finished",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of analysis runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of lifecycle phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),
		phaseStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_status_total",
				Help:      "Lifecycle phases by returned status",
			},
			[]string{"phase", "status"},
		),
		eventsAnalyzed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_analyzed_total",
				Help:      "Total number of events processed by the event loop",
			},
		),
		moduleOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_analyze_total",
				Help:      "Analyze hook outcomes by module",
			},
			[]string{"module", "outcome"},
		),
		gateRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_rejections_total",
				Help:      "Runs rejected by the pre-run policy gate",
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active runs",
			},
		),
		chainModules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chain_modules",
				Help:      "Number of modules in the last started chain",
			},
		),
		committedCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "committed_commands",
				Help:      "Queued parameter commands committed by the last run",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.phaseDuration,
		m.phaseStatus,
		m.eventsAnalyzed,
		m.moduleOutcomes,
		m.gateRejections,
		m.activeRuns,
		m.chainModules,
		m.committedCommands,
	)

	return m, nil
}

// RecordRunStarted counts a started run.
func (m *Metrics) RecordRunStarted(mode string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a finished run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordPhase records the status and duration of one lifecycle phase.
func (m *Metrics) RecordPhase(phase string, status engine.Status, duration time.Duration) {
	if m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	m.phaseStatus.WithLabelValues(phase, status.String()).Inc()
}

// RecordSummary adds the event count and per-module counters of a finished
// event loop.
func (m *Metrics) RecordSummary(s engine.Summary) {
	if m.eventsAnalyzed == nil {
		return
	}
	m.eventsAnalyzed.Add(float64(s.Events))
	for _, c := range s.Modules {
		m.moduleOutcomes.WithLabelValues(c.ModuleID, "ok").Add(float64(c.OK))
		m.moduleOutcomes.WithLabelValues(c.ModuleID, "skip").Add(float64(c.Skip))
		m.moduleOutcomes.WithLabelValues(c.ModuleID, "error").Add(float64(c.Error))
		m.moduleOutcomes.WithLabelValues(c.ModuleID, "quit").Add(float64(c.Quit))
	}
}

// RecordGateRejection counts a run stopped by the gate.
func (m *Metrics) RecordGateRejection() {
	if m.gateRejections == nil {
		return
	}
	m.gateRejections.Inc()
}

// SetChain records the size of the chain and the number of committed
// parameter commands.
func (m *Metrics) SetChain(modules, committed int) {
	if m.chainModules == nil {
		return
	}
	m.chainModules.Set(float64(modules))
	m.committedCommands.Set(float64(committed))
}

// Registry returns the registry holding every collector, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is done. It does
// nothing when metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", m.config.ListenAddress).Str("path", path).Msg("Serving metrics")
	return nil
}
