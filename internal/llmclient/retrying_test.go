package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/internal/retry"
	"github.com/haasonsaas/bantz/pkg/brain"
)

type flakyClient struct {
	failures int
	calls    int
}

func (c *flakyClient) Backend() brain.LLMBackend { return brain.BackendVLLM }
func (c *flakyClient) Model() string             { return "test-model" }
func (c *flakyClient) IsAvailable(ctx context.Context, timeout time.Duration) bool { return true }
func (c *flakyClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	c.calls++
	if c.calls <= c.failures {
		return Response{}, errors.New("transient: connection reset")
	}
	return Response{Content: "ok"}, nil
}

func TestRetryingClient_RetriesTransientFailure(t *testing.T) {
	inner := &flakyClient{failures: 2}
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1.0}
	c := NewRetryingClient(inner, cfg)

	resp, err := c.ChatDetailed(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 3, inner.calls)
}

func TestRetryingClient_DeadlineExceededNotRetried(t *testing.T) {
	inner := &deadlineClient{}
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1.0}
	c := NewRetryingClient(inner, cfg)

	_, err := c.ChatDetailed(context.Background(), nil, 0, 10)
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}

type deadlineClient struct{ calls int }

func (c *deadlineClient) Backend() brain.LLMBackend { return brain.BackendVLLM }
func (c *deadlineClient) Model() string             { return "test-model" }
func (c *deadlineClient) IsAvailable(ctx context.Context, timeout time.Duration) bool { return false }
func (c *deadlineClient) ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error) {
	c.calls++
	return Response{}, context.DeadlineExceeded
}
