// Package contextbuilder composes the per-turn enhanced system context
// consumed by the router LLM, trimming sections in priority order to fit a
// token budget.
package contextbuilder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/bantz/internal/turnbudget"
	"github.com/haasonsaas/bantz/pkg/brain"
)

// Per-section char caps and aggressive trim caps.
const (
	DefaultTokenBudget = turnbudget.DefaultBudget

	toolResultsCap       = 2000
	toolResultsTrim      = 800
	dialogSummaryCap     = 1200
	dialogSummaryTrim    = 400
	plannerDecisionCap   = 800
	plannerDecisionTrim  = 300
	personalityCap       = 800
	personalityTrim      = 400
	toolResultPreviewLen = 500
	maxListPreviewItems  = 5
)

// UserProfile carries the stable facts injected into USER_PROFILE:, omitted
// entirely when the turn is smalltalk.
type UserProfile struct {
	Name                 string
	Facts                map[string]string
	ReliableLearnedPrefs map[string]string
}

// Input is everything Build needs to compose one turn's context.
type Input struct {
	UserInput           string
	ConversationHistory []ConversationTurn
	ToolResults         []brain.ToolResult
	State               *brain.OrchestratorState
	IsSmalltalk         bool

	DialogSummaryBlock string   // pre-rendered DIALOG_SUMMARY: text from the dialog manager
	UserProfile        *UserProfile
	LongTermMemory     []string // up to K bullet snippets
	PersonalityBlock   string
	PlannerDecision    string   // most recent router decision summary, if any

	TokenBudget int // 0 means DefaultTokenBudget
}

// ConversationTurn is one U/A exchange for RECENT_CONVERSATION:.
type ConversationTurn struct {
	User      string
	Assistant string
}

// Result is the composed context plus the dialog summary alone (callers
// may want to log/cache it separately).
type Result struct {
	EnhancedSummary string
	DialogSummary   string
}

// Tracer records trim/injection decisions for observability.
type Tracer interface {
	BeginTurn(userInput string)
	RecordTrim(section string, fromLen, toLen int)
	RecordInjection(finalContext string)
}

// section is one named, ordered, omit-if-empty block of the composed
// context.
type section struct {
	name string
	text string
}

// cache memoizes the capped dialog summary and personality block by content
// hash so repeated turns skip recomputing them. No PII filtering happens here.
type cache struct {
	mu   sync.Mutex
	vals map[string]string
}

func newCache() *cache { return &cache{vals: map[string]string{}} }

func (c *cache) getOrCompute(key string, compute func() string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vals[key]; ok {
		return v
	}
	v := compute()
	c.vals[key] = v
	return v
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// Builder holds the memoization cache across turns within one session.
type Builder struct {
	cache *cache
}

// NewBuilder creates a Builder with a fresh memoization cache.
func NewBuilder() *Builder {
	return &Builder{cache: newCache()}
}

// Build composes the enhanced context from its ordered sections, then
// trims to the token budget.
func (b *Builder) Build(in Input, tracer Tracer) Result {
	if in.TokenBudget <= 0 {
		in.TokenBudget = DefaultTokenBudget
	}
	if tracer != nil {
		tracer.BeginTurn(in.UserInput)
	}

	dialogSummary := b.cache.getOrCompute("dialog:"+hashOf(in.DialogSummaryBlock), func() string {
		return truncateWithMarker(in.DialogSummaryBlock, dialogSummaryCap)
	})

	personality := ""
	if in.PersonalityBlock != "" {
		personality = b.cache.getOrCompute("personality:"+hashOf(in.PersonalityBlock), func() string {
			return truncateWithMarker(in.PersonalityBlock, personalityCap)
		})
	}

	sections := []section{
		{"DIALOG_SUMMARY", withLabel("DIALOG_SUMMARY", dialogSummary)},
		{"USER_PROFILE", buildUserProfileSection(in)},
		{"LONG_TERM_MEMORY", buildLongTermMemorySection(in)},
		{"PERSONALITY", withLabel("PERSONALITY", personality)},
		{"RECENT_CONVERSATION", buildRecentConversationSection(in.ConversationHistory, 2)},
		{"LAST_TOOL_RESULTS", buildToolResultsSection(in.ToolResults, toolResultsCap)},
		{"REFERENCE_TABLE", buildReferenceTableSection(in.State)},
		{"PLANNER_DECISION", withLabel("PLANNER_DECISION", truncateWithMarker(in.PlannerDecision, plannerDecisionCap))},
	}

	final := renderAndFit(sections, in, tracer)

	if tracer != nil {
		tracer.RecordInjection(final)
	}
	return Result{EnhancedSummary: final, DialogSummary: dialogSummary}
}

func withLabel(label, text string) string {
	if text == "" {
		return ""
	}
	return label + ":\n" + text
}

func buildUserProfileSection(in Input) string {
	if in.IsSmalltalk || in.UserProfile == nil {
		return ""
	}
	p := in.UserProfile
	var lines []string
	if p.Name != "" {
		lines = append(lines, "İsim: "+p.Name)
	}
	keys := sortedKeys(p.Facts)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, p.Facts[k]))
	}
	prefKeys := sortedKeys(p.ReliableLearnedPrefs)
	for _, k := range prefKeys {
		lines = append(lines, fmt.Sprintf("Tercih (%s): %s", k, p.ReliableLearnedPrefs[k]))
	}
	if len(lines) == 0 {
		return ""
	}
	return withLabel("USER_PROFILE", strings.Join(lines, "\n"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func buildLongTermMemorySection(in Input) string {
	if len(in.LongTermMemory) == 0 {
		return ""
	}
	var lines []string
	for _, snippet := range in.LongTermMemory {
		lines = append(lines, "- "+snippet)
	}
	return withLabel("LONG_TERM_MEMORY", strings.Join(lines, "\n"))
}

func buildRecentConversationSection(turns []ConversationTurn, keepLast int) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > keepLast {
		turns = turns[len(turns)-keepLast:]
	}
	var lines []string
	for _, t := range turns {
		lines = append(lines, "U: "+t.User)
		lines = append(lines, "A: "+t.Assistant)
	}
	return withLabel("RECENT_CONVERSATION", strings.Join(lines, "\n"))
}

func buildToolResultsSection(results []brain.ToolResult, cap int) string {
	if len(results) == 0 {
		return ""
	}
	var lines []string
	for _, r := range results {
		status := "ok"
		if r.Status != brain.ToolStatusOK {
			status = "fail"
		}
		summary := summarizeToolResult(r.Result)
		lines = append(lines, fmt.Sprintf("%s (%s): %s", r.ToolName, status, summary))
	}
	text := strings.Join(lines, "\n")
	return withLabel("LAST_TOOL_RESULTS", truncateWithMarker(text, cap))
}

// summarizeToolResult renders a tool result value as a ≤500-char preview.
// Lists with more than 5 items show the first 5 plus a count; a map keyed by
// "events" is treated the same way; strings are truncated with an explicit
// marker.
func summarizeToolResult(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return truncateWithMarker(val, toolResultPreviewLen)
	case []any:
		return summarizeList(val)
	case map[string]any:
		if events, ok := val["events"].([]any); ok {
			return summarizeList(events)
		}
		return truncateWithMarker(fmt.Sprintf("%v", val), toolResultPreviewLen)
	default:
		return truncateWithMarker(fmt.Sprintf("%v", val), toolResultPreviewLen)
	}
}

func summarizeList(items []any) string {
	if len(items) > maxListPreviewItems {
		shown := items[:maxListPreviewItems]
		return truncateWithMarker(fmt.Sprintf("%v (+%d more)", shown, len(items)-maxListPreviewItems), toolResultPreviewLen)
	}
	return truncateWithMarker(fmt.Sprintf("%v", items), toolResultPreviewLen)
}

func buildReferenceTableSection(state *brain.OrchestratorState) string {
	if state == nil || len(state.ReferenceTable) == 0 {
		return ""
	}
	indexes := make([]int, 0, len(state.ReferenceTable))
	for i := range state.ReferenceTable {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	var lines []string
	for _, i := range indexes {
		ref := state.ReferenceTable[i]
		lines = append(lines, fmt.Sprintf("#%d: %s", i, ref.Label))
	}
	return withLabel("REFERENCE_TABLE", strings.Join(lines, "\n"))
}

// truncateWithMarker truncates text to max chars (rune-aware), appending an
// explicit marker when truncation actually happened.
func truncateWithMarker(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + " …[kırpıldı]"
}

func joinSections(sections []section) string {
	var parts []string
	for _, s := range sections {
		if s.text != "" {
			parts = append(parts, s.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// renderAndFit applies the fixed trim-then-drop cascade until the
// rendered result's estimated token count fits in.TokenBudget, or there is
// nothing left to trim except the user input itself (last resort, never
// dropped by this function; callers needing a hard floor handle that case).
func renderAndFit(sections []section, in Input, tracer Tracer) string {
	byName := map[string]*section{}
	for i := range sections {
		byName[sections[i].name] = &sections[i]
	}

	fits := func() bool {
		return turnbudget.EstimateTokens(joinSections(sections)) <= in.TokenBudget
	}
	trim := func(name string, cap int) {
		s := byName[name]
		before := len(s.text)
		if name == "RECENT_CONVERSATION" {
			return // handled separately below
		}
		s.text = truncateWithMarker(s.text, cap)
		if tracer != nil && len(s.text) != before {
			tracer.RecordTrim(name, before, len(s.text))
		}
	}
	drop := func(name string) {
		s := byName[name]
		before := len(s.text)
		if before == 0 {
			return
		}
		s.text = ""
		if tracer != nil {
			tracer.RecordTrim(name, before, 0)
		}
	}

	if fits() {
		return joinSections(sections)
	}

	// 1. tool results -> tool_results_trim
	trim("LAST_TOOL_RESULTS", toolResultsTrim)
	if fits() {
		return joinSections(sections)
	}

	// 2. recent turns -> keep last pair only (already keepLast=2 by
	// construction; nothing further to trim here before the drop step).

	// 3. dialog summary -> dialog_summary_trim
	trim("DIALOG_SUMMARY", dialogSummaryTrim)
	if fits() {
		return joinSections(sections)
	}

	// 4. planner decision -> planner_decision_trim
	trim("PLANNER_DECISION", plannerDecisionTrim)
	if fits() {
		return joinSections(sections)
	}

	// 5. personality -> trim to 400 chars, then drop
	trim("PERSONALITY", personalityTrim)
	if fits() {
		return joinSections(sections)
	}
	drop("PERSONALITY")
	if fits() {
		return joinSections(sections)
	}

	// 6. recent turns -> drop
	drop("RECENT_CONVERSATION")
	if fits() {
		return joinSections(sections)
	}

	// 7. dialog summary -> drop
	drop("DIALOG_SUMMARY")
	if fits() {
		return joinSections(sections)
	}

	// 8. session context (date/time) is carried by the caller's own system
	// prompt scaffolding, not a section here, so it is the caller's to drop;
	// within this builder the remaining sections (USER_PROFILE,
	// LONG_TERM_MEMORY, REFERENCE_TABLE, LAST_TOOL_RESULTS) are dropped in
	// that order before the user input is ever touched.
	for _, name := range []string{"REFERENCE_TABLE", "LONG_TERM_MEMORY", "USER_PROFILE", "LAST_TOOL_RESULTS"} {
		drop(name)
		if fits() {
			return joinSections(sections)
		}
	}

	// 9. user input is the caller's responsibility (last resort); this
	// builder never truncates it since it is not one of the sections it owns.
	return joinSections(sections)
}
