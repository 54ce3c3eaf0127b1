// Package sanitize strips client contact details from job descriptions
// shown in the open-jobs feed, so parties cannot bypass the platform
// before a job is assigned.
package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Plain email (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +xx..., (xxx) xxx-xxxx, 08xx..., etc.
// Allowed characters are digits, spaces, minus, dot, parens and plus.
// At least 9 digits total so the match is not too aggressive.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.\(\)]{7,}\d`)

func RedactContactInfo(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary trims a description for list views, cutting at a word boundary.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		// No space in the window; back up so the cut does not split a rune.
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return s[:i] + "…"
}
