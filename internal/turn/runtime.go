// Package turn implements the brain's single entry point:
// ProcessTurn(userInput, state) -> (OrchestratorOutput, state). It threads
// a turn through context assembly, the router/finalizer orchestrator, the
// tool executor, dialog memory, and observability.
package turn

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/haasonsaas/bantz/internal/confirm"
	"github.com/haasonsaas/bantz/internal/contextbuilder"
	"github.com/haasonsaas/bantz/internal/dialogstore"
	"github.com/haasonsaas/bantz/internal/observability"
	"github.com/haasonsaas/bantz/internal/orchestrator"
	"github.com/haasonsaas/bantz/internal/toolexec"
	"github.com/haasonsaas/bantz/pkg/brain"
)

const pendingPlanTraceKey = "pending_plan"

const cancelledMessage = "Anlaşıldı efendim, işlemi iptal ettim."
const repromptPrefix = "Önceki isteğimi onaylıyor musunuz? "

// Dispatcher invokes the named tool's handler: the transport-specific
// adapter that actually talks to calendar/gmail/etc. backends. It is the
// runner passed down to toolexec.Executor.Execute.
type Dispatcher = toolexec.RunnerFn

// Deps wires the runtime to the components it orchestrates.
type Deps struct {
	Hybrid         *orchestrator.Hybrid
	Executor       *toolexec.Executor
	ContextBuilder *contextbuilder.Builder
	Dialog         *dialogstore.Manager
	Tracker        *observability.RunTracker
	Dispatch       Dispatcher
}

// Runtime hosts ProcessTurn. One Runtime serves one session;
// callers isolate sessions by constructing one Runtime per session_id (the
// per-session mutex here only protects against accidental concurrent calls
// on the same Runtime, not against cross-session interference; sessions
// never share a Runtime).
type Runtime struct {
	hybrid         *orchestrator.Hybrid
	executor       *toolexec.Executor
	contextBuilder *contextbuilder.Builder
	dialog         *dialogstore.Manager
	tracker        *observability.RunTracker
	dispatch       Dispatcher

	mu sync.Mutex
}

// NewRuntime builds a Runtime from deps.
func NewRuntime(deps Deps) *Runtime {
	return &Runtime{
		hybrid:         deps.Hybrid,
		executor:       deps.Executor,
		contextBuilder: deps.ContextBuilder,
		dialog:         deps.Dialog,
		tracker:        deps.Tracker,
		dispatch:       deps.Dispatch,
	}
}

// ProcessTurn runs one full turn for userInput against state, returning
// the finalized output and the (possibly mutated) state.
func (rt *Runtime) ProcessTurn(ctx context.Context, userInput string, state *brain.OrchestratorState) (brain.OrchestratorOutput, *brain.OrchestratorState, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if state == nil {
		state = &brain.OrchestratorState{}
	}

	// Open a Run span; tool events published during dispatch correlate
	// through its id (the finalizer's error event carries no correlation id).
	span := rt.tracker.TrackRun(ctx, userInput, state.SessionID)

	// Resolve an outstanding confirmation before anything else.
	if len(state.PendingConfirmations) > 0 {
		return rt.resolvePendingConfirmation(ctx, span, userInput, state)
	}

	// Build the enhanced context.
	dialogSummaryBlock := ""
	if rt.dialog != nil {
		dialogSummaryBlock = rt.dialog.ToPromptBlock()
	}
	ctxResult := rt.contextBuilder.Build(contextbuilder.Input{
		UserInput:          userInput,
		ToolResults:        state.LastToolResults,
		State:              state,
		DialogSummaryBlock: dialogSummaryBlock,
	}, nil)

	// Route.
	planOutput, err := rt.hybrid.Plan(ctx, userInput, ctxResult.DialogSummary)
	if err != nil {
		_ = span.Close(brain.RunError, string(brain.RouteUnknown), "", "", 0, err)
		return brain.OrchestratorOutput{}, state, err
	}

	return rt.executeAndFinalize(ctx, span, userInput, ctxResult.EnhancedSummary, state, planOutput)
}

// resolvePendingConfirmation classifies the user's reply against the
// oldest pending action: affirmative re-dispatches, negative cancels,
// anything else re-prompts.
func (rt *Runtime) resolvePendingConfirmation(ctx context.Context, span *observability.RunSpan, userInput string, state *brain.OrchestratorState) (brain.OrchestratorOutput, *brain.OrchestratorState, error) {
	pending := state.PendingConfirmations[0]
	intent := confirm.ClassifyReply(userInput)

	switch intent {
	case confirm.IntentAffirmative:
		state.PendingConfirmations = state.PendingConfirmations[1:]
		state.ConfirmedTool = pending.Tool
		rt.executor.ConfirmAction(toolexec.Step{Action: pending.Tool, Params: pending.Slots})

		planOutput, ok := restorePendingPlan(state)
		if !ok {
			out := brain.OrchestratorOutput{Route: brain.RouteUnknown, AssistantReply: cancelledMessage}
			_ = span.Close(brain.RunError, string(brain.RouteUnknown), out.AssistantReply, "", 0, fmt.Errorf("turn: no pending plan found for confirmed tool %q", pending.Tool))
			return out, state, nil
		}
		delete(state.Trace, pendingPlanTraceKey)
		return rt.executeAndFinalize(ctx, span, userInput, "", state, planOutput)

	case confirm.IntentNegative:
		state.PendingConfirmations = nil
		if state.Trace != nil {
			delete(state.Trace, pendingPlanTraceKey)
		}
		out := brain.OrchestratorOutput{Route: brain.RouteCancelled, AssistantReply: cancelledMessage}
		_ = span.Close(brain.RunSuccess, string(brain.RouteCancelled), out.AssistantReply, "", 0, nil)
		return out, state, nil

	default: // IntentUnrelated
		out := brain.OrchestratorOutput{
			Route:                brain.RouteUnknown,
			RequiresConfirmation: true,
			ConfirmationPrompt:   pending.Prompt,
			AssistantReply:       repromptPrefix + pending.Prompt,
		}
		_ = span.Close(brain.RunPartial, string(brain.RouteUnknown), out.AssistantReply, "", 0, nil)
		return out, state, nil
	}
}

// executeAndFinalize dispatches the tool plan, finalizes the reply,
// persists the turn summary, and closes the run span.
func (rt *Runtime) executeAndFinalize(ctx context.Context, span *observability.RunSpan, userInput, enhancedSummary string, state *brain.OrchestratorState, planOutput brain.OrchestratorOutput) (brain.OrchestratorOutput, *brain.OrchestratorState, error) {
	var statuses []string

	// Previous turn's results were already consumed during context build;
	// a turn that dispatches tools replaces them with only this turn's
	// outcomes, and a turn with no tool plan leaves them in place.
	if len(planOutput.ToolPlan) > 0 {
		state.LastToolResults = nil
	}

	for _, toolName := range planOutput.ToolPlan {
		step := toolexec.Step{Action: toolName, Params: planOutput.Slots}
		result := rt.executor.ExecuteInRun(ctx, span, step, rt.dispatch, false)

		if result.AwaitingConfirmation {
			state.PendingConfirmations = append(state.PendingConfirmations, brain.PendingAction{
				Tool:      toolName,
				Slots:     planOutput.Slots,
				Prompt:    result.ConfirmationPrompt,
				RiskLevel: result.RiskLevel,
			})
			stashPendingPlan(state, planOutput)

			out := brain.OrchestratorOutput{
				Route:                planOutput.Route,
				RequiresConfirmation: true,
				ConfirmationPrompt:   result.ConfirmationPrompt,
				AssistantReply:       result.ConfirmationPrompt,
			}
			_ = span.Close(brain.RunPartial, string(planOutput.Route), out.AssistantReply, "", 0, nil)
			return out, state, nil
		}

		toolResult := brain.ToolResult{
			ToolName:  toolName,
			RiskLevel: result.RiskLevel,
			Duplicate: result.Duplicate,
		}
		if result.OK {
			toolResult.Status = brain.ToolStatusOK
			toolResult.Result = result.Data
			statuses = append(statuses, toolName+":ok")
		} else {
			toolResult.Status = brain.ToolStatusError
			toolResult.Error = result.Error
			statuses = append(statuses, toolName+":error")
		}
		state.LastToolResults = append(state.LastToolResults, toolResult)
	}

	state.ConfirmedTool = ""
	if refs := extractEntityRefs(state.LastToolResults); refs != nil {
		state.ReferenceTable = refs
	}

	// Finalize the reply.
	finalOutput := rt.hybrid.Finalize(ctx, planOutput, userInput, enhancedSummary, state.LastToolResults)

	// Persist the turn summary.
	state.TurnNumber++
	actionTaken := summarizeAction(finalOutput.Route, statuses)
	if rt.dialog != nil {
		_ = rt.dialog.AddTurn(ctx, brain.CompactSummary{
			TurnNumber:   state.TurnNumber,
			UserIntent:   userInput,
			ActionTaken:  actionTaken,
			PendingItems: []string{},
		})
	}

	// Close the run span.
	status := brain.RunSuccess
	for _, s := range statuses {
		if strings.HasSuffix(s, ":error") {
			status = brain.RunPartial
			break
		}
	}
	_ = span.Close(status, string(finalOutput.Route), finalOutput.AssistantReply, "", 0, nil)

	return finalOutput, state, nil
}

func summarizeAction(route brain.Route, toolStatuses []string) string {
	if len(toolStatuses) == 0 {
		return string(route)
	}
	return string(route) + ": " + strings.Join(toolStatuses, ", ")
}

func stashPendingPlan(state *brain.OrchestratorState, plan brain.OrchestratorOutput) {
	if state.Trace == nil {
		state.Trace = map[string]any{}
	}
	state.Trace[pendingPlanTraceKey] = plan
}

func restorePendingPlan(state *brain.OrchestratorState) (brain.OrchestratorOutput, bool) {
	if state.Trace == nil {
		return brain.OrchestratorOutput{}, false
	}
	plan, ok := state.Trace[pendingPlanTraceKey].(brain.OrchestratorOutput)
	return plan, ok
}
