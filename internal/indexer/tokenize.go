package indexer

import (
	"strings"
	"unicode"
)

// stopWords mirrors the small, pragmatic stop-word list used for
// search-token filtering rather than a full linguistic stop-word corpus
// (spec §4.G "52 common English stop words").
var stopWords = buildStopWordSet(
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
	"at", "by", "for", "with", "about", "into",
	"before", "after", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "once", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "this", "that", "these",
	"those", "of", "as", "it", "its",
)

func buildStopWordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Tokenize splits text into lowercase alphanumeric tokens, drops stop words
// and single characters, and splits identifier-shaped tokens on
// camelCase/snake_case/kebab-case boundaries (spec §4.G "searchable text
// flattening").
func Tokenize(text string) []string {
	var tokens []string
	for _, raw := range splitWords(text) {
		for _, part := range splitIdentifier(raw) {
			part = strings.ToLower(part)
			if len(part) < 2 || stopWords[part] {
				continue
			}
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
	})
}

// splitIdentifier breaks camelCase, snake_case, and kebab-case compound
// identifiers into their constituent words (spec §4.G).
func splitIdentifier(s string) []string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(r)
	}
	return strings.Fields(b.String())
}
