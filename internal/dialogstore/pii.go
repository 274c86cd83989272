package dialogstore

import "regexp"

// PII categories masked before dialog-turn persistence: email addresses,
// phone-like digit runs, identity-number-length runs.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d[\s.\-]?){9,15}\b`)
	idPattern    = regexp.MustCompile(`\b\d{11}\b`)
)

const piiRedacted = "***"

// FilterPII masks common PII patterns (email, phone-like digit runs,
// identity-number-length digit runs) in text before it is persisted.
// Identity-number masking runs before phone masking so an 11-digit Turkish
// kimlik no is not first partially consumed by the looser phone pattern.
func FilterPII(text string) string {
	if text == "" {
		return text
	}
	text = idPattern.ReplaceAllString(text, piiRedacted)
	text = emailPattern.ReplaceAllString(text, piiRedacted)
	text = phonePattern.ReplaceAllString(text, piiRedacted)
	return text
}
