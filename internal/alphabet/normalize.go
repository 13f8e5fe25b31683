package alphabet

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel folds a free-form transcription towards the default alphabet:
// compatibility decomposition, combining marks removed, whitespace dropped and
// lower case. Symbols that still fall outside the alphabet are left in place
// so that Encode reports them.
func NormalizeLabel(s string) string {
	if s == "" {
		return s
	}
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.In(unicode.White_Space)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Lower(language.Und).String(out)
}
