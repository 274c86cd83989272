package confirm

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// affirmative and negative are the Turkish confirmation lexicons. Both
// match single tokens only.
var affirmative = map[string]bool{
	"evet": true, "tamam": true, "ok": true, "olur": true,
	"ekle": true, "e": true, "kabul": true,
}

var negative = map[string]bool{
	"hayır": true, "iptal": true, "vazgeç": true, "yok": true, "reddet": true,
}

// Intent is the classification of a user's reply to a pending confirmation.
type Intent string

const (
	IntentAffirmative Intent = "affirmative"
	IntentNegative    Intent = "negative"
	IntentUnrelated   Intent = "unrelated"
)

// ClassifyReply classifies free-form user input against the Turkish
// affirmative/negative lexicon. Matching is on the whole trimmed,
// lowercased input so multi-word replies ("evet lütfen") are treated as
// unrelated rather than guessed at; the lexicon is intentionally narrow to
// keep the false-positive rate low.
func ClassifyReply(userInput string) Intent {
	t := strings.ToLower(strings.TrimSpace(userInput))
	if affirmative[t] {
		return IntentAffirmative
	}
	if negative[t] {
		return IntentNegative
	}
	return IntentUnrelated
}

// FingerprintFn computes an optional per-tool params fingerprint used to
// scope a confirmation token to specific parameters. The zero value (nil)
// means tool-name-only matching.
type FingerprintFn func(slots map[string]any) string

// PromptTemplates maps a tool name to a Turkish confirmation prompt
// template. "%s" is replaced with a human-readable description of the
// object being acted upon (e.g. an event title or file path), drawn from
// slots by the caller before formatting.
var PromptTemplates = map[string]string{
	"calendar.delete_event": "%s etkinliğini silmemi onaylıyor musunuz?",
	"calendar.create_event": "%s etkinliğini oluşturmamı onaylıyor musunuz?",
	"gmail.send":            "%s kişisine e-posta göndermemi onaylıyor musunuz?",
	"file.delete":           "%s dosyasını silmemi onaylıyor musunuz?",
}

const defaultPromptTemplate = "Bu işlemi (%s) gerçekleştirmemi onaylıyor musunuz?"

// BuildConfirmationPrompt renders the localized confirmation prompt for
// tool, interpolating subject (e.g. an event title or file path), or the
// tool name when subject is empty. A tool without a template gets a generic
// prompt that names the tool and ignores subject.
func BuildConfirmationPrompt(tool, subject string) string {
	tmpl, ok := PromptTemplates[tool]
	if !ok {
		tmpl = defaultPromptTemplate
		return fmt.Sprintf(tmpl, tool)
	}
	if subject == "" {
		subject = tool
	}
	return fmt.Sprintf(tmpl, subject)
}

// MatchesPending reports whether confirmedTool (set by the turn runtime
// once the user affirms) satisfies the pending action's (tool, fingerprint)
// token.
func MatchesPending(pending brain.PendingAction, confirmedTool string, fingerprintFn FingerprintFn, slots map[string]any) bool {
	if pending.Tool != confirmedTool {
		return false
	}
	if fingerprintFn == nil || pending.Fingerprint == "" {
		return true
	}
	return pending.Fingerprint == fingerprintFn(slots)
}
