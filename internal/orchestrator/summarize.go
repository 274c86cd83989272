package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// DefaultToolResultsMaxChars caps the tool-result context attached to the
// finalizer prompt.
const DefaultToolResultsMaxChars = 2000

const perItemPreviewChars = 500
const perItemFallbackPreviewChars = 200
const maxListPreviewItems = 5
const maxFallbackTools = 3

// summarizeToolResults renders tool results into a JSON string capped at
// maxChars, previewing each item at a coarse per-item cap before falling
// back to a denser first-N-tools summary if the whole thing still overflows.
func summarizeToolResults(results []brain.ToolResult, maxChars int) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	if maxChars <= 0 {
		maxChars = DefaultToolResultsMaxChars
	}

	type row struct {
		ToolName string `json:"tool_name"`
		Status   string `json:"status"`
		Result   any    `json:"result,omitempty"`
		Error    string `json:"error,omitempty"`
	}

	truncated := false
	rows := make([]row, 0, len(results))
	for _, r := range results {
		out, wasTruncated := truncateValue(r.Result, perItemPreviewChars)
		truncated = truncated || wasTruncated
		rows = append(rows, row{ToolName: r.ToolName, Status: string(r.Status), Result: out, Error: r.Error})
	}

	buf, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("%v", rows), true
	}
	text := string(buf)

	if len(text) <= maxChars {
		return text, truncated
	}

	// Fallback: keep only the first N tools at a denser preview.
	truncated = true
	n := maxFallbackTools
	if n > len(results) {
		n = len(results)
	}
	fallbackRows := make([]row, 0, n)
	for _, r := range results[:n] {
		out, _ := truncateValue(r.Result, perItemFallbackPreviewChars)
		fallbackRows = append(fallbackRows, row{ToolName: r.ToolName, Status: string(r.Status), Result: out})
	}
	buf, err = json.Marshal(fallbackRows)
	text = string(buf)
	if err != nil {
		text = fmt.Sprintf("%v", fallbackRows)
	}
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars]) + "… (kırpıldı)"
	}
	return text, truncated
}

func truncateValue(v any, maxSize int) (any, bool) {
	switch val := v.(type) {
	case []any:
		if len(val) > maxListPreviewItems {
			return map[string]any{
				"_preview":     val[:maxListPreviewItems],
				"_truncated":   true,
				"_total_count": len(val),
			}, true
		}
		return val, false
	case map[string]any:
		if events, ok := val["events"].([]any); ok && len(events) > maxListPreviewItems {
			preview := map[string]any{
				"events":        events[:maxListPreviewItems],
				"_preview":      true,
				"_total_events": len(events),
			}
			for k, vv := range val {
				if k != "events" {
					preview[k] = vv
				}
			}
			return preview, true
		}
		s, _ := json.Marshal(val)
		if truncated, ok := truncateRunes(string(s), maxSize); ok {
			return truncated, true
		}
		return val, false
	case string:
		if truncated, ok := truncateRunes(val, maxSize); ok {
			return truncated, true
		}
		return val, false
	default:
		return val, false
	}
}

// truncateRunes trims text to max runes, returning the marked-up string and
// whether truncation actually happened.
func truncateRunes(text string, max int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= max {
		return text, false
	}
	return fmt.Sprintf("%s… (%d karakterden kırpıldı)", string(runes[:max]), len(runes)), true
}
