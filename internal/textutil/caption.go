package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeCaption returns model output in the form stored in caption files:
// Unicode NFC, control characters removed, runs of whitespace collapsed to a
// single space, and surrounding whitespace trimmed. An all-whitespace caption
// normalizes to "".
func NormalizeCaption(text string) string {
	text = norm.NFC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			continue
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StripPrompt removes an echoed prompt prefix that some generative backends
// repeat at the start of their answer.
func StripPrompt(text, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= len(prompt) && strings.EqualFold(trimmed[:len(prompt)], prompt) {
		return strings.TrimSpace(trimmed[len(prompt):])
	}
	return text
}
