package search

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var queryPolicy = bluemonday.StrictPolicy()

// NormalizeQuery prepares raw input for the index service: markup is
// stripped, the text is NFKC-normalized and runs of whitespace collapse to
// one space. A result of "" means there is nothing to search for.
func NormalizeQuery(text string) string {
	s := html.UnescapeString(queryPolicy.Sanitize(text))
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
