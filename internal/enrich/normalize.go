package enrich

import (
	"regexp"
	"strings"
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Normalize cleans model output and scraped text before storage: markdown
// emphasis markers, backslashes and double quotes are stripped, whitespace
// runs collapse to single spaces. Applied uniformly to title, body and tags.
// Normalize(Normalize(x)) == Normalize(x) for any x.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.ReplaceAll(s, "**", " ")
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, "\"", "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
