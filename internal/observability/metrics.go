package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// Metrics holds the process-wide Prometheus collectors for the brain
// runtime: LLM call latency and tokens by tier/backend, tool execution
// outcomes, and gating/guard decisions.
type Metrics struct {
	LLMRequestDuration   *prometheus.HistogramVec
	LLMTokensTotal       *prometheus.CounterVec
	ToolExecutionTotal   *prometheus.CounterVec
	ToolExecutionSeconds *prometheus.HistogramVec
	GatingDecisionTotal  *prometheus.CounterVec
	GuardViolationTotal  *prometheus.CounterVec
}

// NewMetrics registers a fresh collector set on reg. Pass
// prometheus.NewRegistry() in tests to avoid the global default registry's
// duplicate-registration panic across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "brain_llm_request_duration_seconds",
			Help: "Router/finalizer call latency by backend and tier.",
		}, []string{"backend", "tier"}),
		LLMTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_llm_tokens_total",
			Help: "Prompt and completion tokens consumed, by backend and tier.",
		}, []string{"backend", "tier", "kind"}),
		ToolExecutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_tool_execution_total",
			Help: "Tool executions by tool name and status.",
		}, []string{"tool", "status"}),
		ToolExecutionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "brain_tool_execution_seconds",
			Help: "Tool handler latency by tool name.",
		}, []string{"tool"}),
		GatingDecisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_gating_decision_total",
			Help: "Quality-gating decisions by outcome and reason.",
		}, []string{"decision", "reason"}),
		GuardViolationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_guard_violation_total",
			Help: "No-new-facts guard violations by category.",
		}, []string{"category"}),
	}
	reg.MustRegister(m.LLMRequestDuration, m.LLMTokensTotal, m.ToolExecutionTotal,
		m.ToolExecutionSeconds, m.GatingDecisionTotal, m.GuardViolationTotal)
	return m
}

// ObserveLLMMetric records one LLMMetric row onto the duration/token
// collectors.
func (m *Metrics) ObserveLLMMetric(metric brain.LLMMetric) {
	if m == nil {
		return
	}
	backend, tier := string(metric.Backend), string(metric.Tier)
	m.LLMRequestDuration.WithLabelValues(backend, tier).Observe(float64(metric.LatencyMS) / 1000.0)
	m.LLMTokensTotal.WithLabelValues(backend, tier, "prompt").Add(float64(metric.PromptTokens))
	m.LLMTokensTotal.WithLabelValues(backend, tier, "completion").Add(float64(metric.CompletionTokens))
}

// ObserveToolExecution records one tool dispatch outcome.
func (m *Metrics) ObserveToolExecution(tool, status string, elapsedSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionSeconds.WithLabelValues(tool).Observe(elapsedSeconds)
}

// ObserveGatingDecision records one gating Policy.Evaluate outcome.
func (m *Metrics) ObserveGatingDecision(decision, reason string) {
	if m == nil {
		return
	}
	m.GatingDecisionTotal.WithLabelValues(decision, reason).Inc()
}

// ObserveGuardViolation records one grounding-guard violation category.
func (m *Metrics) ObserveGuardViolation(category string) {
	if m == nil {
		return
	}
	m.GuardViolationTotal.WithLabelValues(category).Inc()
}
