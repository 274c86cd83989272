// Package qualitygate implements the per-turn decision between the fast
// (router-only) and quality (router + finalizer) pipelines: a weighted
// text-feature score, a fixed rule order, and a sliding-window rate limit
// on the quality tier.
package qualitygate

import (
	"strings"

	"github.com/haasonsaas/bantz/internal/turnbudget"
)

// Weights are the default component weights for Score.Total.
type Weights struct {
	Complexity float64
	Writing    float64
	Risk       float64
}

// DefaultWeights is the stock complexity/writing/risk weighting.
var DefaultWeights = Weights{Complexity: 0.35, Writing: 0.45, Risk: 0.20}

// Score is the combined 0-5 heuristic score driving the gating decision.
type Score struct {
	Complexity int
	Writing    int
	Risk       int
	Total      float64
	Components map[string]float64
}

// ComputeScore scores text using the default weights unless w is provided.
func ComputeScore(text string, toolNames []string, requiresConfirmation bool, w *Weights) Score {
	weights := DefaultWeights
	if w != nil {
		weights = *w
	}

	complexity := turnbudget.ScoreComplexity(text)
	writing := turnbudget.ScoreWritingNeed(text)
	risk := turnbudget.ScoreRisk(text, toolNames, requiresConfirmation)

	cComp := float64(complexity) * weights.Complexity
	cWrite := float64(writing) * weights.Writing
	cRisk := float64(risk) * weights.Risk

	return Score{
		Complexity: complexity,
		Writing:    writing,
		Risk:       risk,
		Total:      round2(cComp + cWrite + cRisk),
		Components: map[string]float64{
			"complexity": cComp,
			"writing":    cWrite,
			"risk":       cRisk,
		},
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func matchesAnyPattern(text string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	t := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(t, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
