// Package metrics exposes Prometheus counters for the message
// pipeline and an optional /metrics listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/skillbot/internal/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	messagesTotal      *prometheus.CounterVec
	toolExecutions     *prometheus.CounterVec
	schedulerFires     prometheus.Counter
	llmRequestDuration *prometheus.HistogramVec
	skillsLoaded       prometheus.Gauge
}

// New creates the metric set on its own registry so tests can hold
// isolated instances.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Processed chat messages",
			},
			[]string{"kind"},
		),
		toolExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_executions_total",
				Help:      "Skill executions by outcome",
			},
			[]string{"outcome"},
		),
		schedulerFires: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_fires_total",
				Help:      "Scheduled job trigger fires",
			},
		),
		llmRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of LLM generation requests",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "status"},
		),
		skillsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "skills_loaded",
				Help:      "Skills currently loaded from disk",
			},
		),
	}

	reg.MustRegister(
		m.messagesTotal,
		m.toolExecutions,
		m.schedulerFires,
		m.llmRequestDuration,
		m.skillsLoaded,
	)

	return m
}

// RecordMessage counts one processed message; kind is "chat",
// "command", "callback" or "scheduled".
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(kind).Inc()
}

// RecordToolExecution counts one skill run; outcome is "success",
// "error" or "not_found".
func (m *Metrics) RecordToolExecution(outcome string) {
	if m == nil {
		return
	}
	m.toolExecutions.WithLabelValues(outcome).Inc()
}

// RecordSchedulerFire counts one trigger fire.
func (m *Metrics) RecordSchedulerFire() {
	if m == nil {
		return
	}
	m.schedulerFires.Inc()
}

// RecordLLMRequest records one generation request.
func (m *Metrics) RecordLLMRequest(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// SetSkillsLoaded reports the current skill count.
func (m *Metrics) SetSkillsLoaded(n int) {
	if m == nil {
		return
	}
	m.skillsLoaded.Set(float64(n))
}

// Serve runs the /metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Metrics listener started", logger.Field{Key: "addr", Value: addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Metrics listener failed", err)
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
