// Package toolexec is the per-tool dispatch pipeline: consults the
// confirmation firewall, invokes the caller-supplied handler, records
// observability, and translates the outcome into an ExecutionResult.
package toolexec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/haasonsaas/bantz/internal/confirm"
	"github.com/haasonsaas/bantz/internal/observability"
	"github.com/haasonsaas/bantz/pkg/brain"
)

// Step is one planned tool invocation.
type Step struct {
	Action string
	Params map[string]any
}

// RunnerFn invokes the actual tool handler. retryCount reports how many
// retries the handler itself performed; retries are handler-internal and
// the executor never adds its own.
type RunnerFn func(ctx context.Context, action string, params map[string]any) (result any, duplicate bool, retryCount int, err error)

// ExecutionResult is the executor's outcome for one dispatched step.
type ExecutionResult struct {
	OK                   bool
	Data                 any
	Error                string
	AwaitingConfirmation bool
	ConfirmationPrompt   string
	RiskLevel            brain.ToolRisk
	Duplicate            bool
	RetryCount           int
}

// Executor is the tool dispatch pipeline.
type Executor struct {
	risks   *confirm.Registry
	bus     *observability.EventBus
	metrics *observability.Metrics // may be nil; Execute no-ops metrics calls when so

	mu        sync.Mutex
	confirmed map[string]bool // key: tool_name + "|" + params fingerprint
}

// NewExecutor builds an Executor consulting risks for the confirmation
// firewall and publishing tool.executed/tool.failed events on bus.
func NewExecutor(risks *confirm.Registry, bus *observability.EventBus) *Executor {
	return &Executor{
		risks:     risks,
		bus:       bus,
		confirmed: map[string]bool{},
	}
}

// WithMetrics attaches a Metrics collector, returning e for chaining.
func (e *Executor) WithMetrics(m *observability.Metrics) *Executor {
	e.metrics = m
	return e
}

// ConfirmAction records an approval token for one subsequent execution of
// step, keyed by (tool_name, params_fingerprint).
func (e *Executor) ConfirmAction(step Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed[confirmKey(step)] = true
}

func confirmKey(step Step) string {
	return step.Action + "|" + paramsFingerprint(step.Params)
}

func paramsFingerprint(params map[string]any) string {
	buf, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func (e *Executor) isConfirmed(step Step) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmed[confirmKey(step)]
}

func (e *Executor) clearConfirmation(step Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.confirmed, confirmKey(step))
}

// Execute runs step through the full dispatch pipeline without recording a
// ToolCall row; callers inside a tracked run use ExecuteInRun.
func (e *Executor) Execute(ctx context.Context, step Step, runner RunnerFn, skipConfirmation bool) ExecutionResult {
	return e.ExecuteInRun(ctx, nil, step, runner, skipConfirmation)
}

// ExecuteInRun runs step through the full dispatch pipeline and records the
// ToolCall on span (when non-nil), linking it to the owning run; the bus
// events it publishes then carry the span's run id as correlation id.
func (e *Executor) ExecuteInRun(ctx context.Context, span *observability.RunSpan, step Step, runner RunnerFn, skipConfirmation bool) ExecutionResult {
	risk := e.risks.GetToolRisk(step.Action)

	if risk == brain.RiskDestructive && !skipConfirmation && !e.isConfirmed(step) {
		prompt := confirm.BuildConfirmationPrompt(step.Action, subjectFromParams(step.Params))
		return ExecutionResult{
			AwaitingConfirmation: true,
			ConfirmationPrompt:   prompt,
			RiskLevel:            risk,
		}
	}

	start := time.Now()
	result, duplicate, retryCount, err := runner(ctx, step.Action, step.Params)
	elapsed := time.Since(start)

	// A confirmation token is single-use.
	if e.isConfirmed(step) {
		e.clearConfirmation(step)
	}

	execResult := ExecutionResult{
		RiskLevel:  risk,
		Duplicate:  duplicate,
		RetryCount: retryCount,
	}

	correlationID := ""
	if span != nil {
		correlationID = span.RunID()
	}

	var status, errMsg string
	if err != nil {
		execResult.OK = false
		execResult.Error = err.Error()
		status = "error"
		errMsg = err.Error()
		if e.bus != nil {
			e.bus.Publish("tool.failed", map[string]any{"tool": step.Action, "error": err.Error()}, "toolexec", correlationID)
		}
	} else {
		execResult.OK = true
		execResult.Data = result
		if duplicate {
			execResult.Data = "Bu işlem zaten gerçekleştirilmişti, tekrar eklenmedi."
		}
		status = "ok"
		if e.bus != nil {
			e.bus.Publish("tool.executed", map[string]any{"tool": step.Action, "duplicate": duplicate}, "toolexec", correlationID)
		}
	}

	if span != nil {
		paramsJSON, _ := json.Marshal(step.Params)
		_ = span.RecordToolCall(step.Action, paramsJSON, status, result, errMsg, elapsed, retryCount, "")
	}
	e.metrics.ObserveToolExecution(step.Action, status, elapsed.Seconds())

	return execResult
}

func subjectFromParams(params map[string]any) string {
	for _, key := range []string{"title", "subject", "path", "event_id", "name"} {
		if v, ok := params[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
