// Package confirm implements the tool risk registry and the confirmation
// firewall: the rule that destructive tools always require explicit user
// assent regardless of what the LLM itself requested. The
// destructive-always-confirms rule is hard-wired, not configurable.
package confirm

import (
	"strings"
	"sync"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// Registry is a process-wide, read-mostly map of tool name -> risk level.
// Treated as effectively immutable after startup registration.
type Registry struct {
	mu    sync.RWMutex
	risks map[string]brain.ToolRisk
}

// NewRegistry creates an empty registry. Unknown tools default to
// brain.RiskModerate.
func NewRegistry() *Registry {
	return &Registry{risks: map[string]brain.ToolRisk{}}
}

// Register assigns a risk level to a tool name, or a wildcard pattern
// (`prefix*`, `*suffix`, `mcp:*`, bare `*`) matched at lookup time.
func (r *Registry) Register(name string, risk brain.ToolRisk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.risks[name] = risk
}

// GetToolRisk returns the registered risk for name, falling back to a
// matching wildcard pattern, then to brain.RiskModerate.
func (r *Registry) GetToolRisk(name string) brain.ToolRisk {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if risk, ok := r.risks[name]; ok {
		return risk
	}
	for pattern, risk := range r.risks {
		if matchesPattern(name, pattern) {
			return risk
		}
	}
	return brain.RiskModerate
}

// ToolsByRisk returns every registered (non-wildcard) tool name at the given
// risk level.
func (r *Registry) ToolsByRisk(risk brain.ToolRisk) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, rk := range r.risks {
		if rk == risk && !strings.Contains(name, "*") {
			out = append(out, name)
		}
	}
	return out
}

// matchesPattern supports bare "*", "prefix*", "*suffix", and exact match.
func matchesPattern(name, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	}
	return name == pattern
}

// RequiresConfirmation returns true when risk is destructive (irrespective
// of llmRequested), otherwise returns llmRequested verbatim. This is the
// confirmation firewall invariant.
func RequiresConfirmation(risk brain.ToolRisk, llmRequested bool) bool {
	if risk == brain.RiskDestructive {
		return true
	}
	return llmRequested
}
