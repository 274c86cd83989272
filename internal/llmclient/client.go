// Package llmclient implements the two interchangeable LLM provider
// endpoints (router, finalizer): a non-streaming, single-turn chat call
// plus an availability probe.
package llmclient

import (
	"context"
	"time"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// Message is one entry in a chat_detailed request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of one chat_detailed call.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the LLM provider interface both router and finalizer tiers
// implement.
type Client interface {
	// ChatDetailed sends messages and returns the completion plus usage.
	ChatDetailed(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Response, error)

	// IsAvailable probes the backend with a short deadline.
	IsAvailable(ctx context.Context, timeout time.Duration) bool

	// Backend names which provider this is, for metrics labels.
	Backend() brain.LLMBackend

	// Model returns the model id this client targets.
	Model() string
}
