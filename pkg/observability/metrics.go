package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the orchestration
// runtime. All methods are nil-safe: a nil *Metrics (metrics disabled)
// is a no-op on every call, so callers never need a feature check.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	agentCalls        *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	agentErrors       *prometheus.CounterVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	planStarted   *prometheus.CounterVec
	planCompleted *prometheus.CounterVec
	planFailed    *prometheus.CounterVec
	planDuration  *prometheus.HistogramVec

	subtaskStarted   *prometheus.CounterVec
	subtaskCompleted *prometheus.CounterVec
	subtaskFailed    *prometheus.CounterVec
	subtaskRetried   *prometheus.CounterVec
	subtaskDuration  *prometheus.HistogramVec

	approvalRequested *prometheus.CounterVec
	approvalDecided   *prometheus.CounterVec
	approvalExpired   prometheus.Counter
	approvalWaitTime  prometheus.Histogram
	approvalQueueSize prometheus.Gauge

	fsmTransitions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance, or returns (nil, nil) when
// metrics are disabled — callers treat a nil *Metrics as the no-op case.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initAgentMetrics()
	m.initLLMMetrics()
	m.initToolMetrics()
	m.initPlanMetrics()
	m.initSubtaskMetrics()
	m.initApprovalMetrics()
	m.initFSMMetrics()
	m.initHTTPMetrics()
	return m, nil
}

func (m *Metrics) initAgentMetrics() {
	m.agentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "calls_total",
		Help: "Total number of agent invocations",
	}, []string{"agent_type"})

	m.agentCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "call_duration_seconds",
		Help: "Agent invocation duration in seconds", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"agent_type"})

	m.agentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "errors_total",
		Help: "Total number of agent invocation errors",
	}, []string{"agent_type", "error_type"})

	m.registry.MustRegister(m.agentCalls, m.agentCallDuration, m.agentErrors)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "turns_total",
		Help: "Total number of LLM turns",
	}, []string{"model"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "turn_duration_seconds",
		Help: "LLM turn duration in seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total input tokens consumed",
	}, []string{"model"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total output tokens generated",
	}, []string{"model"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "errors_total",
		Help: "Total number of LLM turn errors",
	}, []string{"model", "error_type"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool execution errors",
	}, []string{"tool_name", "error_type"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

func (m *Metrics) initPlanMetrics() {
	m.planStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "plan", Name: "executions_started_total",
		Help: "Total number of plan executions started",
	}, []string{"agent_type"})

	m.planCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "plan", Name: "executions_completed_total",
		Help: "Total number of plan executions completed",
	}, []string{"agent_type"})

	m.planFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "plan", Name: "executions_failed_total",
		Help: "Total number of plan executions that failed or were cancelled",
	}, []string{"agent_type", "reason"})

	m.planDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "plan", Name: "execution_duration_seconds",
		Help: "Plan execution wall-clock duration in seconds", Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"agent_type"})

	m.registry.MustRegister(m.planStarted, m.planCompleted, m.planFailed, m.planDuration)
}

func (m *Metrics) initSubtaskMetrics() {
	m.subtaskStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "subtask", Name: "started_total",
		Help: "Total number of subtasks started",
	}, []string{"agent_type"})

	m.subtaskCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "subtask", Name: "completed_total",
		Help: "Total number of subtasks completed",
	}, []string{"agent_type"})

	m.subtaskFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "subtask", Name: "failed_total",
		Help: "Total number of subtasks that exhausted retries",
	}, []string{"agent_type"})

	m.subtaskRetried = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "subtask", Name: "retried_total",
		Help: "Total number of subtask retry attempts",
	}, []string{"agent_type"})

	m.subtaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "subtask", Name: "duration_seconds",
		Help: "Subtask execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{"agent_type"})

	m.registry.MustRegister(m.subtaskStarted, m.subtaskCompleted, m.subtaskFailed, m.subtaskRetried, m.subtaskDuration)
}

func (m *Metrics) initApprovalMetrics() {
	m.approvalRequested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "approval", Name: "requested_total",
		Help: "Total number of approval requests raised",
	}, []string{"kind"})

	m.approvalDecided = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "approval", Name: "decided_total",
		Help: "Total number of approval decisions",
	}, []string{"kind", "decision"})

	m.approvalExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "approval", Name: "expired_total",
		Help: "Total number of approval requests reclaimed by the sweeper after timeout",
	})

	m.approvalWaitTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "approval", Name: "wait_duration_seconds",
		Help: "Time an approval request sat pending before a decision", Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})

	m.approvalQueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "approval", Name: "queue_depth",
		Help: "Current number of pending approval requests",
	})

	m.registry.MustRegister(m.approvalRequested, m.approvalDecided, m.approvalExpired, m.approvalWaitTime, m.approvalQueueSize)
}

func (m *Metrics) initFSMMetrics() {
	m.fsmTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "fsm", Name: "transitions_total",
		Help: "Total number of conversation FSM transitions",
	}, []string{"from_state", "to_state", "event"})

	m.registry.MustRegister(m.fsmTransitions)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration)
}

// RecordAgentCall records an agent invocation.
func (m *Metrics) RecordAgentCall(agentType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(agentType).Inc()
	m.agentCallDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordAgentError records an agent invocation error.
func (m *Metrics) RecordAgentError(agentType, errorType string) {
	if m == nil {
		return
	}
	m.agentErrors.WithLabelValues(agentType, errorType).Inc()
}

// RecordLLMTurn records one LLM turn's duration and token usage.
func (m *Metrics) RecordLLMTurn(model string, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model).Inc()
	m.llmCallDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.llmTokensInput.WithLabelValues(model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model).Add(float64(outputTokens))
}

// RecordLLMError records an LLM turn error.
func (m *Metrics) RecordLLMError(model, errorType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, errorType).Inc()
}

// RecordToolCall records a tool invocation.
func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError records a tool execution error.
func (m *Metrics) RecordToolError(toolName, errorType string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorType).Inc()
}

// RecordPlanStarted records a plan execution starting.
func (m *Metrics) RecordPlanStarted(agentType string) {
	if m == nil {
		return
	}
	m.planStarted.WithLabelValues(agentType).Inc()
}

// RecordPlanCompleted records a plan execution's terminal duration and outcome.
func (m *Metrics) RecordPlanCompleted(agentType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.planCompleted.WithLabelValues(agentType).Inc()
	m.planDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordPlanFailed records a plan execution failing or being cancelled.
func (m *Metrics) RecordPlanFailed(agentType, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.planFailed.WithLabelValues(agentType, reason).Inc()
	m.planDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordSubtaskStarted records a subtask execution starting.
func (m *Metrics) RecordSubtaskStarted(agentType string) {
	if m == nil {
		return
	}
	m.subtaskStarted.WithLabelValues(agentType).Inc()
}

// RecordSubtaskCompleted records a subtask completing successfully.
func (m *Metrics) RecordSubtaskCompleted(agentType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.subtaskCompleted.WithLabelValues(agentType).Inc()
	m.subtaskDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordSubtaskFailed records a subtask exhausting its retries.
func (m *Metrics) RecordSubtaskFailed(agentType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.subtaskFailed.WithLabelValues(agentType).Inc()
	m.subtaskDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordSubtaskRetried records one retry attempt of a subtask.
func (m *Metrics) RecordSubtaskRetried(agentType string) {
	if m == nil {
		return
	}
	m.subtaskRetried.WithLabelValues(agentType).Inc()
}

// RecordApprovalRequested records an approval request being raised.
func (m *Metrics) RecordApprovalRequested(kind string) {
	if m == nil {
		return
	}
	m.approvalRequested.WithLabelValues(kind).Inc()
}

// RecordApprovalDecided records a human decision (or the sweeper's
// timeout reclaim) and how long the request waited for it.
func (m *Metrics) RecordApprovalDecided(kind, decision string, waited time.Duration) {
	if m == nil {
		return
	}
	m.approvalDecided.WithLabelValues(kind, decision).Inc()
	m.approvalWaitTime.Observe(waited.Seconds())
	if decision == "expired" {
		m.approvalExpired.Inc()
	}
}

// SetApprovalQueueDepth sets the current pending-approval count.
func (m *Metrics) SetApprovalQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.approvalQueueSize.Set(float64(depth))
}

// RecordFSMTransition records a conversation FSM state transition.
func (m *Metrics) RecordFSMTransition(fromState, toState, event string) {
	if m == nil {
		return
	}
	m.fsmTransitions.WithLabelValues(fromState, toState, event).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, statusCodeLabel(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns the HTTP handler serving the Prometheus text exposition
// format. A nil *Metrics serves 503, matching a disabled configuration.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry, or nil if disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
