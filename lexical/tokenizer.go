package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize normalizes text for indexing and querying: lowercase, treat
// every non-alphanumeric rune as a separator, and drop tokens of length
// one. Documents and queries must pass through the same normalization
// or scores lose meaning.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) <= 1 {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}
