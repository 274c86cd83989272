// Package orchestrator implements the two-tier LLM orchestration: a
// deterministic router that classifies and slots the turn, and an optional
// quality finalizer that turns the router's decision and any tool results
// into the natural-language reply.
package orchestrator

import (
	"context"
	"strings"

	"github.com/haasonsaas/bantz/internal/codec"
	"github.com/haasonsaas/bantz/internal/llmclient"
	"github.com/haasonsaas/bantz/pkg/brain"
)

// Router calls are deterministic single-shot classification: temperature 0,
// small output cap.
const (
	DefaultRouterTemperature = 0.0
	DefaultRouterMaxTokens   = 512
)

const routerSystemPrompt = `Sen BANTZ'sın — Jarvis tarzı Türkçe kişisel asistan beyni.

Görevin: kullanıcının isteğini aşağıdaki JSON şemasına uyan TEK bir JSON nesnesiyle sınıflandırmak.
Şema alanları: route (calendar|gmail|smalltalk|system|unknown), calendar_intent (create|modify|cancel|query|none),
slots (nesne), confidence (0-1), tool_plan (dizi), assistant_reply (string), ask_user (bool), question,
requires_confirmation (bool), confirmation_prompt, memory_update, reasoning_summary.

Kurallar:
- Sadece JSON döndür, başka metin ekleme.
- Emin değilsen route=unknown ve confidence düşük olsun.
- Yıkıcı bir işlem (silme, iptal, gönderme) planlıyorsan requires_confirmation=true yap.`

const routerFallbackReply = "Üzgünüm efendim, isteğinizi şu anda işleyemedim."

// Router is the stage-1 LLM call producing a validated structured decision.
// It never invokes tools; tool dispatch belongs to the turn runtime.
type Router struct {
	client       llmclient.Client
	temperature  float64
	maxTokens    int
	systemPrompt string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterTemperature overrides the sampling temperature (default 0.0).
func WithRouterTemperature(t float64) RouterOption {
	return func(r *Router) { r.temperature = t }
}

// WithRouterMaxTokens overrides the output token cap (default 512).
func WithRouterMaxTokens(n int) RouterOption {
	return func(r *Router) { r.maxTokens = n }
}

// WithRouterSystemPrompt overrides the fixed identity/role system prompt.
func WithRouterSystemPrompt(p string) RouterOption {
	return func(r *Router) { r.systemPrompt = p }
}

// NewRouter builds a Router calling client for its LLM completions.
func NewRouter(client llmclient.Client, opts ...RouterOption) *Router {
	r := &Router{
		client:       client,
		temperature:  DefaultRouterTemperature,
		maxTokens:    DefaultRouterMaxTokens,
		systemPrompt: routerSystemPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route builds the system+context prompt, calls the router LLM at a
// deterministic temperature, and pipes the raw text through the structured
// output codec. On any LLM failure or repair failure it degrades to a fixed
// fallback OrchestratorOutput (localized apology, route unknown) rather
// than propagating an error. Only a context that is already done when Route
// is called surfaces as an error; one that ends during the LLM call degrades
// to the fallback like any other call failure.
func (r *Router) Route(ctx context.Context, userInput, dialogSummary string) (brain.OrchestratorOutput, error) {
	if err := ctx.Err(); err != nil {
		return brain.OrchestratorOutput{}, err
	}

	messages := []llmclient.Message{
		{Role: "system", Content: r.systemPrompt},
		{Role: "user", Content: buildRouterUserPrompt(userInput, dialogSummary)},
	}

	resp, err := r.client.ChatDetailed(ctx, messages, r.temperature, r.maxTokens)
	if err != nil {
		return fallbackOutput(), nil
	}

	out, _, err := codec.ValidateAndRepair(resp.Content)
	if err != nil {
		return fallbackOutput(), nil
	}
	return *out, nil
}

func buildRouterUserPrompt(userInput, dialogSummary string) string {
	var b strings.Builder
	if dialogSummary != "" {
		b.WriteString("Dialog Context:\n")
		b.WriteString(dialogSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(userInput)
	b.WriteString("\n\nYalnızca şemaya uyan geçerli bir JSON nesnesi döndür.")
	return b.String()
}

func fallbackOutput() brain.OrchestratorOutput {
	return brain.OrchestratorOutput{
		Route:          brain.RouteUnknown,
		CalendarIntent: brain.CalendarNone,
		Confidence:     0.0,
		AssistantReply: routerFallbackReply,
	}
}
