package llmclient

import (
	"context"
	"time"

	"github.com/haasonsaas/bantz/internal/retry"
	"github.com/haasonsaas/bantz/pkg/brain"
)

// RetryingClient wraps a Client with internal/retry's exponential backoff.
// The retry layer itself treats deadline/cancellation as permanent, so a
// timed-out call is never retried; every other transport error (a dropped
// connection, a 5xx from the local vLLM endpoint) gets cfg.MaxAttempts
// tries before giving up.
type RetryingClient struct {
	inner Client
	cfg   retry.Config
}

// NewRetryingClient wraps inner with cfg (use retry.DefaultConfig() for
// the stock 3-attempt exponential backoff with jitter).
func NewRetryingClient(inner Client, cfg retry.Config) *RetryingClient {
	return &RetryingClient{inner: inner, cfg: cfg}
}

func (c *RetryingClient) Backend() brain.LLMBackend { return c.inner.Backend() }
func (c *RetryingClient) Model() string             { return c.inner.Model() }

func (c *RetryingClient) IsAvailable(ctx context.Context, timeout time.Duration) bool {
	return c.inner.IsAvailable(ctx, timeout)
}

func (c *RetryingClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	var resp Response
	result := retry.Do(ctx, c.cfg, func() error {
		var err error
		resp, err = c.inner.ChatDetailed(ctx, messages, temperature, maxTokens)
		return err
	})
	if result.Err != nil {
		return Response{}, result.Err
	}
	return resp, nil
}
