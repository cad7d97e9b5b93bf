// Package cleantext strips markup from user supplied profile text.
package cleantext

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StripTagsPolicy()

// Text strips all HTML tags from s and trims surrounding whitespace. The result
// is plain text: entities bluemonday escapes are decoded again, so "&" and "<"
// that are not part of a tag survive unchanged.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Limit returns s cut to at most n runes.
func Limit(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
