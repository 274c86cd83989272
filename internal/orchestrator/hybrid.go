package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/haasonsaas/bantz/internal/guard"
	"github.com/haasonsaas/bantz/internal/llmclient"
	"github.com/haasonsaas/bantz/internal/observability"
	"github.com/haasonsaas/bantz/internal/qualitygate"
	"github.com/haasonsaas/bantz/pkg/brain"
)

// Quality-tier call defaults.
const (
	DefaultFinalizerTemperature = 0.4
	DefaultFinalizerMaxTokens   = 512
	defaultAvailabilityTimeout  = 1500 * time.Millisecond
	defaultAvailabilityTTL      = 30 * time.Second
)

const hybridFallbackReply = "Üzgünüm efendim, bir sorun oluştu."

// HybridConfig tunes the finalizer tier.
type HybridConfig struct {
	FinalizerTemperature float64
	FinalizerMaxTokens   int
	FallbackToRouter     bool
	NoNewFactsGuard      bool
	ToolResultsMaxChars  int
}

// DefaultHybridConfig returns the stock finalizer settings.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		FinalizerTemperature: DefaultFinalizerTemperature,
		FinalizerMaxTokens:   DefaultFinalizerMaxTokens,
		FallbackToRouter:     true,
		NoNewFactsGuard:      true,
		ToolResultsMaxChars:  DefaultToolResultsMaxChars,
	}
}

// Hybrid is the two-phase router+finalizer orchestrator: it consults the
// quality gate before ever paying for the quality tier, and runs the
// no-new-facts guard on any finalized reply that cites tool results.
type Hybrid struct {
	router       *Router
	finalizer    llmclient.Client
	availability *llmclient.AvailabilityCache
	gate         *qualitygate.Policy
	cfg          HybridConfig
	bus          *observability.EventBus
}

// NewHybrid builds a Hybrid. finalizer may be nil, in which case the
// finalizer tier is always unavailable and every turn uses the router's
// own reply.
func NewHybrid(router *Router, finalizer llmclient.Client, gate *qualitygate.Policy, cfg HybridConfig, bus *observability.EventBus) *Hybrid {
	return &Hybrid{
		router:       router,
		finalizer:    finalizer,
		availability: llmclient.NewAvailabilityCache(finalizer, defaultAvailabilityTimeout, defaultAvailabilityTTL),
		gate:         gate,
		cfg:          cfg,
		bus:          bus,
	}
}

// Plan delegates to the router.
func (h *Hybrid) Plan(ctx context.Context, userInput, dialogSummary string) (brain.OrchestratorOutput, error) {
	return h.router.Route(ctx, userInput, dialogSummary)
}

// Finalize optionally rewrites planOutput's reply through the quality tier:
// availability probe, gating decision, finalizer call, grounding check with
// one strict retry, and router-reply fallback on any failure.
func (h *Hybrid) Finalize(ctx context.Context, planOutput brain.OrchestratorOutput, userInput, dialogSummary string, toolResults []brain.ToolResult) brain.OrchestratorOutput {
	toolNames := make([]string, 0, len(planOutput.ToolPlan))
	toolNames = append(toolNames, planOutput.ToolPlan...)

	// a. Availability probe.
	available := h.availability.Available(ctx)

	// b. Gating.
	gateResult := h.gate.Evaluate(userInput, toolNames, planOutput.RequiresConfirmation)
	if !available || gateResult.Decision != qualitygate.DecisionUseQuality {
		return routerFallback(planOutput, "3b_fallback")
	}

	text := h.callFinalizer(ctx, planOutput, userInput, dialogSummary, toolResults)
	return finalized(planOutput, text, h.activeFinalizerType(available))
}

func (h *Hybrid) callFinalizer(ctx context.Context, planOutput brain.OrchestratorOutput, userInput, dialogSummary string, toolResults []brain.ToolResult) string {
	// d. Summarize tool results.
	toolSummary := ""
	if len(toolResults) > 0 {
		toolSummary, _ = summarizeToolResults(toolResults, h.cfg.ToolResultsMaxChars)
	}

	noNewFacts := h.cfg.NoNewFactsGuard && toolSummary != ""
	systemPrompt := buildFinalizerSystemPrompt(len(toolResults) > 0, noNewFacts)
	userPrompt := buildFinalizerUserPrompt(planOutput, userInput, dialogSummary, toolSummary)

	messages := []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	// e. Call the finalizer.
	resp, err := h.finalizer.ChatDetailed(ctx, messages, h.cfg.FinalizerTemperature, h.cfg.FinalizerMaxTokens)
	if err != nil {
		if h.publishFinalizerError(err); h.cfg.FallbackToRouter {
			return planOutput.AssistantReply
		}
		return hybridFallbackReply
	}
	text := strings.TrimSpace(resp.Content)

	// f. No-new-facts guard, one strict retry.
	if noNewFacts && text != "" {
		planJSON, _ := json.Marshal(planOutput)
		result := guard.Validate(text, userInput, string(planJSON), dialogSummary, toolSummary)
		if !result.Passed {
			strictMessages := []llmclient.Message{
				{Role: "system", Content: guard.StrictRetryClause + "\n\n" + systemPrompt},
				{Role: "user", Content: userPrompt},
			}
			retryTemp := h.cfg.FinalizerTemperature - guard.RetryTemperatureDelta
			if retryTemp < 0 {
				retryTemp = 0
			}
			retryResp, retryErr := h.finalizer.ChatDetailed(ctx, strictMessages, retryTemp, h.cfg.FinalizerMaxTokens)
			if retryErr != nil {
				return planOutput.AssistantReply
			}
			retryText := strings.TrimSpace(retryResp.Content)
			retryResult := guard.Validate(retryText, userInput, string(planJSON), dialogSummary, toolSummary)
			if !retryResult.Passed {
				return planOutput.AssistantReply
			}
			text = retryText
		}
	}

	return text
}

func (h *Hybrid) publishFinalizerError(err error) {
	if h.bus == nil {
		return
	}
	h.bus.Publish("finalizer.error", map[string]any{"error": err.Error()}, "orchestrator", "")
}

func (h *Hybrid) activeFinalizerType(available bool) string {
	if !available {
		return "3b_fallback"
	}
	return string(h.finalizer.Backend())
}

func routerFallback(planOutput brain.OrchestratorOutput, finalizerType string) brain.OrchestratorOutput {
	return finalized(planOutput, planOutput.AssistantReply, finalizerType)
}

func finalized(planOutput brain.OrchestratorOutput, text, finalizerType string) brain.OrchestratorOutput {
	out := planOutput
	out.AssistantReply = text
	raw := map[string]any{"finalizer_type": finalizerType}
	if planOutput.RawOutput != nil {
		raw["router"] = planOutput.RawOutput
	}
	out.RawOutput = raw
	return out
}

func buildFinalizerSystemPrompt(hasToolResults, noNewFacts bool) string {
	var b strings.Builder
	b.WriteString("Sen BANTZ'sın — Jarvis tarzı Türkçe asistan.\n\n")
	b.WriteString("Kurallar:\n")
	b.WriteString("- \"Efendim\" hitabı kullan\n")
	b.WriteString("- Nazik, profesyonel ama samimi\n")
	b.WriteString("- Kısa ve öz cevaplar (1-2 cümle ideal)\n")
	b.WriteString("- Türkçe doğal konuş\n")
	if hasToolResults {
		b.WriteString("\nTakvim/araç sonuçlarını kullanıcıya kısa ve öz aktar.\n")
	}
	if noNewFacts {
		b.WriteString("\nÖNEMLİ: Sadece TOOL RESULTS bilgisine dayanarak cevap ver. Yeni bilgi UYDURMAK YASAK.\n")
	}
	return b.String()
}

func buildFinalizerUserPrompt(planOutput brain.OrchestratorOutput, userInput, dialogSummary, toolSummary string) string {
	var parts []string
	if dialogSummary != "" {
		parts = append(parts, "Dialog Context:\n"+dialogSummary)
	}
	parts = append(parts, "User: "+userInput)
	if planOutput.Route == brain.RouteCalendar {
		parts = append(parts, "Intent: "+string(planOutput.CalendarIntent))
	}
	if toolSummary != "" {
		parts = append(parts, "Tool Results:\n"+toolSummary)
	}
	parts = append(parts, "Yanıtını Türkçe ver:")
	return strings.Join(parts, "\n\n")
}
