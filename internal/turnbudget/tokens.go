// Package turnbudget estimates token counts and scores raw Turkish input
// text for the quality-gating heuristics (complexity, writing need, risk).
package turnbudget

import (
	"strings"
	"unicode"
)

// TokensPerChar is the heuristic Turkish/English blended ratio used when
// no tokenizer is available.
const TokensPerChar = 0.35

// DefaultBudget is the default token budget for one composed turn context.
const DefaultBudget = 3500

// EstimateTokens approximates the token count of s using a Unicode-aware
// rune count rather than byte length, since Turkish text is UTF-8 multi-byte
// heavy (ı, ş, ğ, ü, ö, ç).
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for range s {
		n++
	}
	est := int(float64(n) * TokensPerChar)
	if est < 1 {
		est = 1
	}
	return est
}

// NormalizeTurkish lowercases s respecting the Turkish dotted/dotless I
// distinction (İ -> i, I -> ı) instead of Go's default Unicode casefold,
// which would otherwise map both to the same Latin "i".
func NormalizeTurkish(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'İ':
			b.WriteRune('i')
		case 'I':
			b.WriteRune('ı')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

var multiStepKeywords = []string{
	"sonra", "ardından", "önce", "daha sonra", "ve", "hem", "ilk olarak",
	"son olarak", "ayrıca", "bununla birlikte",
}

var formalityKeywords = []string{
	"sayın", "resmi", "dilekçe", "rica ederim", "saygılarımla", "e-posta",
	"mektup", "form", "başvuru", "talep",
}

var destructiveKeywords = []string{
	"sil", "iptal", "kaldır", "temizle", "vazgeç", "gönder", "paylaş",
}

func countMatches(text string, keywords []string) int {
	t := NormalizeTurkish(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(t, kw) {
			n++
		}
	}
	return n
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

// ScoreComplexity estimates 0-5 multi-step/planning complexity from keyword
// density plus sentence length.
func ScoreComplexity(text string) int {
	score := countMatches(text, multiStepKeywords)
	words := len(strings.Fields(text))
	if words > 40 {
		score++
	}
	if strings.Count(text, ",") >= 3 {
		score++
	}
	return clampScore(score)
}

// ScoreWritingNeed estimates 0-5 need for polished prose from formality
// keyword density.
func ScoreWritingNeed(text string) int {
	score := countMatches(text, formalityKeywords) * 2
	return clampScore(score)
}

// ScoreRisk estimates 0-5 destructive-action risk from keyword density, the
// tools already planned, and whether the LLM itself asked for confirmation.
func ScoreRisk(text string, toolNames []string, requiresConfirmation bool) int {
	score := countMatches(text, destructiveKeywords)
	for _, name := range toolNames {
		n := NormalizeTurkish(name)
		if strings.Contains(n, "delete") || strings.Contains(n, "cancel") || strings.Contains(n, "remove") {
			score += 2
		}
	}
	if requiresConfirmation {
		score++
	}
	return clampScore(score)
}
