// Package metrics provides Prometheus-based metrics recording and querying
// for intake bot operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records operational metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveTurn(state string, duration time.Duration)
	ObserveOracleRequest(task, model string, success bool, errorType string, duration time.Duration)
	ObserveOracleTokens(task, model string, promptTokens, completionTokens int)
	IncFallback(task, reason string)
	IncTicketSubmission(sink string, success bool)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	oracleRequests    *prometheus.CounterVec
	oracleDuration    *prometheus.HistogramVec
	oracleTokens      *prometheus.CounterVec
	fallbacksTotal    *prometheus.CounterVec
	ticketSubmissions *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder registered on the default registry.
// Call at most once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_turns_total",
				Help: "Total number of processed conversation turns by lifecycle state",
			},
			[]string{"state"},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intake_turn_duration_seconds",
				Help:    "End-to-end duration of a conversation turn in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		),
		oracleRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_requests_total",
				Help: "Total number of oracle requests by task, model, and status",
			},
			[]string{"task", "model", "status", "error_type"},
		),
		oracleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracle_request_duration_seconds",
				Help:    "Duration of oracle requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task", "model"},
		),
		oracleTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_tokens_total",
				Help: "Total number of tokens used in oracle requests",
			},
			[]string{"task", "model", "type"},
		),
		fallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_fallbacks_total",
				Help: "Total number of deterministic fallbacks taken when the oracle failed",
			},
			[]string{"task", "reason"},
		),
		ticketSubmissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_submissions_total",
				Help: "Total number of ticket submission attempts by sink and status",
			},
			[]string{"sink", "status"},
		),
	}
}

// ObserveTurn records one processed conversation turn.
func (p *PrometheusRecorder) ObserveTurn(state string, duration time.Duration) {
	p.turnsTotal.WithLabelValues(state).Inc()
	p.turnDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// ObserveOracleRequest records one oracle call, successful or not.
func (p *PrometheusRecorder) ObserveOracleRequest(task, model string, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.oracleRequests.WithLabelValues(task, model, status, errorType).Inc()
	p.oracleDuration.WithLabelValues(task, model).Observe(duration.Seconds())
}

// ObserveOracleTokens records token usage for a successful oracle call.
func (p *PrometheusRecorder) ObserveOracleTokens(task, model string, promptTokens, completionTokens int) {
	p.oracleTokens.WithLabelValues(task, model, "prompt").Add(float64(promptTokens))
	p.oracleTokens.WithLabelValues(task, model, "completion").Add(float64(completionTokens))
}

// IncFallback counts a deterministic fallback decision.
func (p *PrometheusRecorder) IncFallback(task, reason string) {
	p.fallbacksTotal.WithLabelValues(task, reason).Inc()
}

// IncTicketSubmission counts a ticket submission attempt.
func (p *PrometheusRecorder) IncTicketSubmission(sink string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	p.ticketSubmissions.WithLabelValues(sink, status).Inc()
}

// NopRecorder discards all observations. Useful in tests and the chat CLI.
type NopRecorder struct{}

func (NopRecorder) ObserveTurn(string, time.Duration)                                    {}
func (NopRecorder) ObserveOracleRequest(string, string, bool, string, time.Duration)     {}
func (NopRecorder) ObserveOracleTokens(string, string, int, int)                         {}
func (NopRecorder) IncFallback(string, string)                                           {}
func (NopRecorder) IncTicketSubmission(string, bool)                                     {}
