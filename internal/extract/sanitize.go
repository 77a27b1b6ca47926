package extract

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// quoteFolder rewrites the characters the source page uses inconsistently
// between postings: non-breaking spaces and curly single quotes.
var quoteFolder = runes.Map(func(r rune) rune {
	switch r {
	case '\u00a0':
		return ' '
	case '\u2018', '\u2019':
		return '\''
	}
	return r
})

// Sanitize folds non-breaking spaces to spaces and curly single quotes to
// ASCII apostrophes.
func Sanitize(s string) string {
	out, _, err := transform.String(quoteFolder, s)
	if err != nil {
		// runes.Map never fails on valid input; keep the original text otherwise.
		return s
	}
	return out
}
