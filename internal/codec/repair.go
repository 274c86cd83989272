package codec

import (
	"strconv"
	"strings"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// routeKeywords maps deterministic keyword hits to a repaired route value.
// Checked in order; first match wins within each enum.
var routeKeywords = []struct {
	route    brain.Route
	keywords []string
}{
	{brain.RouteCalendar, []string{"calendar", "takvim", "toplant", "event", "schedule", "create_meeting", "create_event"}},
	{brain.RouteGmail, []string{"gmail", "mail", "e-posta", "eposta"}},
	{brain.RouteSmalltalk, []string{"smalltalk", "sohbet", "chat"}},
	{brain.RouteSystem, []string{"system", "sistem"}},
}

var calendarIntentKeywords = []struct {
	intent   brain.CalendarIntent
	keywords []string
}{
	{brain.CalendarCreate, []string{"create", "schedule", "oluştur", "ekle", "planla"}},
	{brain.CalendarModify, []string{"modify", "update", "değiştir", "güncelle"}},
	{brain.CalendarCancel, []string{"cancel", "delete", "iptal", "sil"}},
	{brain.CalendarQuery, []string{"query", "list", "sorgula", "göster"}},
}

// RepairEnums normalizes the raw map's route/calendar_intent/tool_plan/
// confidence/reasoning_summary fields into the shapes validate() expects,
// using a deterministic keyword-to-enum map with fuzzy substring fallback.
func RepairEnums(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue // a null never satisfies the schema's typed properties
		}
		out[k] = v
	}

	out["route"] = string(repairRoute(asString(out["route"])))
	out["calendar_intent"] = string(repairCalendarIntent(asString(out["calendar_intent"])))
	out["tool_plan"] = repairToolPlan(out["tool_plan"])
	out["confidence"] = repairConfidence(out["confidence"])
	out["reasoning_summary"] = repairReasoningSummary(out["reasoning_summary"])

	if _, ok := out["slots"]; !ok {
		out["slots"] = map[string]any{}
	}
	if _, ok := out["assistant_reply"]; !ok {
		out["assistant_reply"] = ""
	}
	if _, ok := out["ask_user"]; !ok {
		out["ask_user"] = false
	}
	if _, ok := out["requires_confirmation"]; !ok {
		out["requires_confirmation"] = false
	}
	return out
}

func repairRoute(s string) brain.Route {
	if brain.ValidRoutes[brain.Route(s)] {
		return brain.Route(s)
	}
	t := strings.ToLower(s)
	for _, m := range routeKeywords {
		for _, kw := range m.keywords {
			if strings.Contains(t, kw) {
				return m.route
			}
		}
	}
	return brain.RouteUnknown
}

func repairCalendarIntent(s string) brain.CalendarIntent {
	if brain.ValidCalendarIntents[brain.CalendarIntent(s)] {
		return brain.CalendarIntent(s)
	}
	t := strings.ToLower(s)
	for _, m := range calendarIntentKeywords {
		for _, kw := range m.keywords {
			if strings.Contains(t, kw) {
				return m.intent
			}
		}
	}
	return brain.CalendarNone
}

// repairToolPlan coerces tool_plan from a bare string, a JSON-array-shaped
// string, a comma/newline separated string, or nil, into an ordered list of
// tool names.
func repairToolPlan(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return []string{}
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			inner := strings.Trim(s, "[]")
			return splitList(inner)
		}
		if strings.ContainsAny(s, ",\n") {
			return splitList(s)
		}
		return []string{s}
	default:
		return []string{}
	}
}

func splitList(s string) []string {
	sep := ","
	if strings.Contains(s, "\n") && !strings.Contains(s, ",") {
		sep = "\n"
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"' `)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// repairConfidence clamps numeric confidence into [0,1] and coerces
// stringly-typed values ("yüksek", "0,85") to the default 0.5 unless they
// parse cleanly as a number.
func repairConfidence(v any) float64 {
	switch val := v.(type) {
	case float64:
		return clamp01(val)
	case int:
		return clamp01(float64(val))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return clamp01(f)
		}
		return 0.5
	default:
		return 0.5
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// repairReasoningSummary coerces a bare string (newline-separated) into a
// list, per validate()'s contract.
func repairReasoningSummary(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return []string{}
		}
		lines := strings.Split(val, "\n")
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			l = strings.TrimSpace(l)
			if l != "" {
				out = append(out, l)
			}
		}
		return out
	default:
		return []string{}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
