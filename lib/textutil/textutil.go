package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonicalize turns a free-text name into its comparison-ready form:
// accents stripped, everything outside letters/digits/spaces dropped,
// whitespace runs collapsed, uppercased.
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(text string) string {
	stripped, _, err := transform.String(stripAccents, text)
	if err != nil {
		// transform only fails on malformed utf8, keep the raw bytes then
		stripped = text
	}

	var out strings.Builder
	for _, c := range stripped {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || unicode.IsSpace(c) {
			out.WriteRune(c)
		}
	}

	collapsed := whitespaceRegex.ReplaceAllString(out.String(), " ")
	collapsed = strings.Trim(collapsed, " ")
	return strings.ToUpper(collapsed)
}

// the loose form used when matching page headers and control labels,
// all lowercase with no whitespace at all
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
