// Package codec turns free-form LLM text into a validated
// brain.OrchestratorOutput, repairing the common ways small/local models
// mangle structured JSON output.
package codec

import (
	"encoding/json"
	"errors"
	"strings"
)

// Extraction errors, distinguished so callers can branch without string
// matching.
var (
	ErrEmptyOutput    = errors.New("codec: empty llm output")
	ErrNoJSONObject   = errors.New("codec: no json object found")
	ErrUnbalancedJSON = errors.New("codec: unbalanced json object")
	ErrJSONDecode     = errors.New("codec: json decode error")
)

// ExtractFirstJSONObject strips fenced code blocks and scans for the first
// balanced `{...}` object in text, tracking string-literal and escape state
// so braces inside string values do not perturb the depth counter.
func ExtractFirstJSONObject(text string) (map[string]any, error) {
	stripped := stripCodeFences(text)
	if strings.TrimSpace(stripped) == "" {
		return nil, ErrEmptyOutput
	}

	start := strings.IndexByte(stripped, '{')
	if start < 0 {
		return nil, ErrNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	end := -1

	for i := start; i < len(stripped); i++ {
		c := stripped[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}

	if end < 0 {
		return nil, ErrUnbalancedJSON
	}

	candidate := stripped[start : end+1]
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, ErrJSONDecode
	}
	return obj, nil
}

// stripCodeFences removes ```json / ``` fences, leaving any prose around
// them intact so extraction can still locate the object within.
func stripCodeFences(text string) string {
	var out strings.Builder
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}
