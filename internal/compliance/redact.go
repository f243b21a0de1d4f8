package compliance

import "regexp"

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\(?\d{2,4}\)?[-.\s]?\d{2,4}[-.\s]?\d{3,4}(?:[-.\s]?\d{3,4})?`)
)

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Names are kept so doctor lookups stay readable in the audit trail.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}
