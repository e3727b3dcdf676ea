package websearch

import (
	"regexp"
	"strings"
)

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	lineBreakRe  = regexp.MustCompile(`\n+`)
	bulletRe     = regexp.MustCompile(`[-•]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize joins result contents with blank-line separators and flattens
// them into single-line plain text: markdown bold markers stripped,
// line breaks and whitespace runs collapsed to single spaces, bullet
// characters removed, ends trimmed. The replacement order matters:
// bullets are stripped after line breaks are collapsed so that a
// leading "- " never glues two items together.
func Normalize(results []Result) string {
	contents := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
	}

	text := strings.Join(contents, "\n\n")
	text = boldRe.ReplaceAllString(text, "$1")
	text = lineBreakRe.ReplaceAllString(text, " ")
	text = bulletRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
