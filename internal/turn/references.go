package turn

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/bantz/pkg/brain"
)

const maxReferenceEntries = 10

// extractEntityRefs builds the anaphora reference table from this turn's
// successful tool results, so a follow-up like "2 numaralıyı sil" can be
// resolved against a numbered binding. Entries are numbered from 1 in
// result order, capped at maxReferenceEntries.
func extractEntityRefs(results []brain.ToolResult) map[int]brain.EntityRef {
	table := map[int]brain.EntityRef{}
	next := 1
	for _, r := range results {
		if r.Status != brain.ToolStatusOK {
			continue
		}
		kind := entityKind(r.ToolName)
		for _, item := range resultItems(r.Result) {
			if next > maxReferenceEntries {
				return table
			}
			ref, ok := itemToRef(kind, item)
			if !ok {
				continue
			}
			table[next] = ref
			next++
		}
	}
	if len(table) == 0 {
		return nil
	}
	return table
}

func entityKind(toolName string) string {
	switch {
	case strings.HasPrefix(toolName, "calendar."):
		return "event"
	case strings.HasPrefix(toolName, "gmail."):
		return "email"
	case strings.HasPrefix(toolName, "file."):
		return "file"
	default:
		return "item"
	}
}

// resultItems flattens a tool result into its listable entities: a bare
// list, a map carrying an "events", "items" or "messages" list, or a single
// map.
func resultItems(result any) []map[string]any {
	switch v := result.(type) {
	case []any:
		var out []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		for _, key := range []string{"events", "items", "messages"} {
			if list, ok := v[key].([]any); ok {
				return resultItems(list)
			}
		}
		return []map[string]any{v}
	default:
		return nil
	}
}

func itemToRef(kind string, item map[string]any) (brain.EntityRef, bool) {
	id := firstString(item, "id", "event_id", "message_id", "path")
	label := firstString(item, "summary", "title", "subject", "name")
	if label == "" && id == "" {
		return brain.EntityRef{}, false
	}
	if label == "" {
		label = id
	}
	return brain.EntityRef{Kind: kind, ID: id, Label: fmt.Sprintf("<%s> %s", kind, label)}, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
