package lexicon

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize applies NFKC and case folding and splits on every rune that is not
// a letter, mark or digit.
func Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

// NormalizeTerm returns the canonical matching key of a term.
func NormalizeTerm(term string) string {
	return strings.Join(Tokenize(term), " ")
}

// normalizeTokens re-tokenizes externally supplied tokens so they follow the
// same rules as terms.
func normalizeTokens(tokens []string) string {
	return NormalizeTerm(strings.Join(tokens, " "))
}
