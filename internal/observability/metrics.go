package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	AnalysisOutcomes *prometheus.CounterVec
	AnalysisLatency  prometheus.Histogram
	BackendErrors    *prometheus.CounterVec
	NarrationChunks  *prometheus.CounterVec
	VoiceEvents      *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec

	window *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers instruments on reg instead of the global registry.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected client sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		AnalysisOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_outcomes_total",
			Help:      "Symptom analyses by result source and reason.",
		}, []string{"source", "reason"}),
		AnalysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_ms",
			Help:      "End-to-end symptom analysis latency in milliseconds.",
			Buckets:   []float64{50, 250, 1000, 2500, 5000, 10000, 20000, 30000},
		}),
		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Upstream backend errors by backend and code.",
		}, []string{"backend", "code"}),
		NarrationChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narration_chunks_total",
			Help:      "Narration chunks by final status.",
		}, []string{"status"}),
		VoiceEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_events_total",
			Help:      "Realtime voice session events by type.",
		}, []string{"event"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Realtime tool calls by name and result.",
		}, []string{"name", "result"}),
		window: newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveAnalysis(source, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisOutcomes.WithLabelValues(source, reason).Inc()
	m.AnalysisLatency.Observe(float64(d.Milliseconds()))
	m.window.Observe("analysis_total", float64(d.Milliseconds()))
	m.window.ObserveIndicator(source + "_" + reason)
}

func (m *Metrics) ObserveBackendError(backend, code string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(backend, code).Inc()
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveNarrationChunk(status string) {
	if m == nil {
		return
	}
	m.NarrationChunks.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveVoiceEvent(event string) {
	if m == nil {
		return
	}
	m.VoiceEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveToolCall(name, result string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(name, result).Inc()
}

// ObserveStage records a latency sample in the rolling window served on /v1/status.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.window.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) LatencySnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.window.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
