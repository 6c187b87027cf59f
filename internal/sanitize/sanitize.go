// Package sanitize provides the message hygiene applied before routing:
// markup stripping, whitespace normalization, length capping and a
// best-effort prompt-injection blocklist. The blocklist is a minimal
// heuristic, not a security boundary: novel phrasings bypass it and
// legitimate text about "rules" can trip it.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]*>?`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+previous\s+instructions`),
		regexp.MustCompile(`(?i)disregard\s+all\s+rules`),
		regexp.MustCompile(`(?i)override\s+(?:\S+\s+)?rules`),
		regexp.MustCompile(`(?i)(?:^|\s)(?:system|assistant|developer)\s*:`),
		regexp.MustCompile(`(?i)pretend\s+to\s+be`),
		regexp.MustCompile(`(?i)act\s+as\s+(?:a\s+)?(?:system|developer|jailbreak)`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a\s+)?(?:system\s+prompt|developer\s+mode)`),
	}
)

// StripTags removes anything that looks like a markup tag.
func StripTags(input string) string {
	return tagRe.ReplaceAllString(input, "")
}

// Clean strips tags, collapses whitespace and truncates to maxLen runes.
func Clean(input string, maxLen int) string {
	s := StripTags(input)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if maxLen > 0 {
		if runes := []rune(s); len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}
	return s
}

// DetectInjection reports whether the message matches a known adversarial
// pattern.
func DetectInjection(input string) bool {
	for _, rx := range injectionPatterns {
		if rx.MatchString(input) {
			return true
		}
	}
	return false
}
