package llmclient

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// MetricsSink receives one row per completed LLM call. Satisfied by
// observability.LLMMetricsLog.
type MetricsSink interface {
	Append(m brain.LLMMetric) error
}

// InstrumentedClient wraps a Client, appending one brain.LLMMetric row to a
// sink per ChatDetailed call. Sink failures are swallowed: metrics loss
// never fails a turn.
type InstrumentedClient struct {
	inner Client
	tier  brain.LLMTier
	sink  MetricsSink
}

// NewInstrumentedClient wraps inner, labeling every row with tier.
func NewInstrumentedClient(inner Client, tier brain.LLMTier, sink MetricsSink) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, tier: tier, sink: sink}
}

func (c *InstrumentedClient) Backend() brain.LLMBackend { return c.inner.Backend() }
func (c *InstrumentedClient) Model() string             { return c.inner.Model() }

func (c *InstrumentedClient) IsAvailable(ctx context.Context, timeout time.Duration) bool {
	return c.inner.IsAvailable(ctx, timeout)
}

// ChatDetailed delegates to the wrapped client and records the call's cost
// and outcome.
func (c *InstrumentedClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	start := time.Now()
	resp, err := c.inner.ChatDetailed(ctx, messages, temperature, maxTokens)

	m := brain.LLMMetric{
		Timestamp: start,
		Backend:   c.inner.Backend(),
		Model:     c.inner.Model(),
		LatencyMS: time.Since(start).Milliseconds(),
		Success:   err == nil,
		Tier:      c.tier,
	}
	if err != nil {
		m.ErrorType = errorType(err)
	} else {
		m.PromptTokens = resp.Usage.PromptTokens
		m.CompletionTokens = resp.Usage.CompletionTokens
		m.TotalTokens = resp.Usage.TotalTokens
	}
	_ = c.sink.Append(m)

	return resp, err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "call_failed"
	}
}
