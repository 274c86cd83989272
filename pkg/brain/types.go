// Package brain holds the shared data model for the per-turn orchestrator:
// the structured LLM decision, per-session state, observability spans, and
// the supporting persisted record types.
package brain

import (
	"encoding/json"
	"time"
)

// Route is the top-level intent family a router decision falls into.
type Route string

const (
	RouteCalendar  Route = "calendar"
	RouteGmail     Route = "gmail"
	RouteSmalltalk Route = "smalltalk"
	RouteSystem    Route = "system"
	RouteUnknown   Route = "unknown"
	RouteCancelled Route = "cancelled"
)

// ValidRoutes enumerates every allowed Route value after repair, excluding
// RouteCancelled which is only ever synthesized by the turn runtime itself
// (never a value the codec repairs LLM output into).
var ValidRoutes = map[Route]bool{
	RouteCalendar:  true,
	RouteGmail:     true,
	RouteSmalltalk: true,
	RouteSystem:    true,
	RouteUnknown:   true,
}

// CalendarIntent narrows RouteCalendar decisions.
type CalendarIntent string

const (
	CalendarCreate CalendarIntent = "create"
	CalendarModify CalendarIntent = "modify"
	CalendarCancel CalendarIntent = "cancel"
	CalendarQuery  CalendarIntent = "query"
	CalendarNone   CalendarIntent = "none"
)

// ValidCalendarIntents enumerates every allowed CalendarIntent value.
var ValidCalendarIntents = map[CalendarIntent]bool{
	CalendarCreate: true,
	CalendarModify: true,
	CalendarCancel: true,
	CalendarQuery:  true,
	CalendarNone:   true,
}

// OrchestratorOutput is the router/finalizer decision produced for one turn.
// It is created by the structured-output codec's validation step and is
// never mutated afterward; a finalized variant is a distinct value copied
// from the plan with AssistantReply (and RawOutput.finalizer_type)
// overwritten.
type OrchestratorOutput struct {
	Route                Route          `json:"route"`
	CalendarIntent       CalendarIntent `json:"calendar_intent"`
	Slots                map[string]any `json:"slots"`
	Confidence           float64        `json:"confidence"`
	ToolPlan             []string       `json:"tool_plan"`
	AssistantReply       string         `json:"assistant_reply"`
	AskUser              bool           `json:"ask_user"`
	Question             string         `json:"question,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	ConfirmationPrompt   string         `json:"confirmation_prompt,omitempty"`
	MemoryUpdate         map[string]any `json:"memory_update,omitempty"`
	ReasoningSummary     []string       `json:"reasoning_summary,omitempty"`
	RawOutput            map[string]any `json:"raw_output,omitempty"`
}

// Validate checks the invariants the codec must guarantee hold for every
// emitted OrchestratorOutput.
func (o *OrchestratorOutput) Validate() error {
	if !ValidRoutes[o.Route] {
		return &ValidationError{Field: "route", Value: string(o.Route)}
	}
	if !ValidCalendarIntents[o.CalendarIntent] {
		return &ValidationError{Field: "calendar_intent", Value: string(o.CalendarIntent)}
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return &ValidationError{Field: "confidence", Value: o.Confidence}
	}
	if o.RequiresConfirmation && o.ConfirmationPrompt == "" {
		return &ValidationError{Field: "confirmation_prompt", Value: "empty while requires_confirmation=true"}
	}
	if o.AskUser && o.Question == "" {
		return &ValidationError{Field: "question", Value: "empty while ask_user=true"}
	}
	return nil
}

// ValidationError reports a single invariant violation on a field.
type ValidationError struct {
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field
}

// PendingAction is one outstanding confirmation awaiting user resolution on
// the next turn.
type PendingAction struct {
	Tool        string         `json:"tool"`
	Slots       map[string]any `json:"slots"`
	Prompt      string         `json:"prompt"`
	RiskLevel   ToolRisk       `json:"risk_level"`
	Fingerprint string         `json:"fingerprint,omitempty"`
}

// EntityRef is a tagged reference to an entity surfaced by a tool result,
// bound into the anaphora reference table.
type EntityRef struct {
	Kind  string `json:"kind"` // "event", "email", "file", ...
	ID    string `json:"id"`
	Label string `json:"label"`
}

// OrchestratorState is the per-session mutable state threaded through turns.
// It is never shared across sessions; the turn runtime owns exclusive access
// for the duration of one turn.
type OrchestratorState struct {
	SessionID            string            `json:"session_id"`
	PendingConfirmations []PendingAction   `json:"pending_confirmations"`
	ConfirmedTool        string            `json:"confirmed_tool,omitempty"`
	LastToolResults      []ToolResult      `json:"last_tool_results"`
	ReferenceTable       map[int]EntityRef `json:"reference_table,omitempty"`
	Trace                map[string]any    `json:"trace,omitempty"`
	TurnNumber           int               `json:"turn_number"`
}

// CompactSummary is one dialog turn as persisted by the dialog memory store.
type CompactSummary struct {
	TurnNumber   int       `json:"turn_number"`
	UserIntent   string    `json:"user_intent"`
	ActionTaken  string    `json:"action_taken"`
	PendingItems []string  `json:"pending_items"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToolResultStatus is the outcome of one tool execution attempt.
type ToolResultStatus string

const (
	ToolStatusOK                   ToolResultStatus = "ok"
	ToolStatusError                ToolResultStatus = "error"
	ToolStatusSkipped              ToolResultStatus = "skipped"
	ToolStatusAwaitingConfirmation ToolResultStatus = "awaiting_confirmation"
)

// ToolResult is the outcome of one tool dispatch within a turn. Exactly one
// of Result/Error is populated.
type ToolResult struct {
	ToolName  string           `json:"tool_name"`
	Status    ToolResultStatus `json:"status"`
	Result    any              `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Confirmed bool             `json:"confirmed"`
	RiskLevel ToolRisk         `json:"risk_level"`
	Duplicate bool             `json:"duplicate,omitempty"`
}

// RunStatus is the terminal state of one observability Run span.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
	RunPartial RunStatus = "partial"
)

// Run is one observability span over a single turn.
type Run struct {
	RunID       string    `json:"run_id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserInput   string    `json:"user_input"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	Status      RunStatus `json:"status"`
	Route       string    `json:"route,omitempty"`
	FinalOutput string    `json:"final_output,omitempty"`
	Model       string    `json:"model,omitempty"`
	TotalTokens int       `json:"total_tokens"`
	LatencyMS   int64     `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
}

// ToolCall is one recorded tool invocation belonging to a Run.
type ToolCall struct {
	CallID        string          `json:"call_id"`
	RunID         string          `json:"run_id"`
	ToolName      string          `json:"tool_name"`
	Params        json.RawMessage `json:"params"`
	Status        string          `json:"status"`
	ResultHash    string          `json:"result_hash"`
	ResultSummary string          `json:"result_summary"`
	Error         string          `json:"error,omitempty"`
	ElapsedMS     int64           `json:"elapsed_ms"`
	RetryCount    int             `json:"retry_count"`
	Confirmation  string          `json:"confirmation,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Artifact is a stored content blob associated with a Run.
type Artifact struct {
	ArtifactID string    `json:"artifact_id"`
	RunID      string    `json:"run_id,omitempty"`
	Type       string    `json:"type"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int       `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdempotencyRecord binds a deterministic fingerprint to a created side
// effect so retries within the TTL window can be deduplicated.
type IdempotencyRecord struct {
	Key        string    `json:"key"`
	EventID    string    `json:"event_id"`
	Summary    string    `json:"summary"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	CalendarID string    `json:"calendar_id"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// Expired reports whether this record is past its TTL relative to now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.CreatedAt.Add(time.Duration(r.TTLSeconds) * time.Second))
}

// ToolRisk classifies how much user assent a tool requires before dispatch.
type ToolRisk string

const (
	RiskSafe        ToolRisk = "safe"
	RiskModerate    ToolRisk = "moderate"
	RiskDestructive ToolRisk = "destructive"
)

// LLMBackend names which provider handled a given LLM call.
type LLMBackend string

const (
	BackendVLLM   LLMBackend = "vllm"
	BackendGemini LLMBackend = "gemini"
)

// LLMTier distinguishes the fast router tier from the quality finalizer tier.
type LLMTier string

const (
	TierFast    LLMTier = "fast"
	TierQuality LLMTier = "quality"
)

// LLMMetric is one JSONL row recording an LLM call's cost and outcome.
type LLMMetric struct {
	Timestamp        time.Time  `json:"ts"`
	Backend          LLMBackend `json:"backend"`
	Model            string     `json:"model"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	LatencyMS        int64      `json:"latency_ms"`
	Success          bool       `json:"success"`
	ErrorType        string     `json:"error_type,omitempty"`
	Tier             LLMTier    `json:"tier"`
	Reason           string     `json:"reason,omitempty"`
}

// Event is one message published on the observability event bus.
type Event struct {
	EventType     string         `json:"event_type"`
	Data          map[string]any `json:"data"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}
