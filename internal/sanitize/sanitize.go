// Package sanitize clamps and cleans participant-submitted text before it
// enters session state.
package sanitize

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Clean strips HTML tags, escapes markup characters, trims surrounding
// whitespace and truncates to max runes.
func Clean(s string, max int) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max > 0 && len(runes) > max {
		s = string(runes[:max])
	}
	return s
}

var profanity = []string{
	"arse", "bastard", "bitch", "bollocks", "crap", "cunt",
	"damn", "dick", "fuck", "piss", "prick", "shit", "slut",
	"twat", "wank", "whore",
}

// HasProfanity reports whether word contains a blocked term,
// case-insensitively.
func HasProfanity(word string) bool {
	w := strings.ToLower(word)
	for _, p := range profanity {
		if strings.Contains(w, p) {
			return true
		}
	}
	return false
}
