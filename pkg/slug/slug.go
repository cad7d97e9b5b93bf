// Package slug turns free-form names into URL-safe identifiers.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength matches the width of the profiles.slug column.
const MaxLength = 100

var (
	disallowed = regexp.MustCompile(`[^\w\s-]`)
	separators = regexp.MustCompile(`[-\s]+`)
	valid      = regexp.MustCompile(`^[a-z0-9_]+(?:-[a-z0-9_]+)*$`)
)

// Make lower-cases s, folds accented letters to ASCII, drops anything that is
// not a letter, digit, underscore, hyphen or space, and joins words with single
// hyphens. The result may be empty.
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = disallowed.ReplaceAllString(strings.ToLower(folded), "")
	folded = separators.ReplaceAllString(strings.TrimSpace(folded), "-")
	folded = strings.Trim(folded, "-_")
	if len(folded) > MaxLength {
		folded = strings.TrimRight(folded[:MaxLength], "-_")
	}
	return folded
}

// WithSuffix returns base followed by "-n", trimmed so the result fits MaxLength.
func WithSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > MaxLength {
		base = strings.TrimRight(base[:MaxLength-len(suffix)], "-_")
	}
	return base + suffix
}

// Valid reports whether s is a non-empty slug in the form Make produces.
func Valid(s string) bool {
	return len(s) <= MaxLength && valid.MatchString(s)
}
