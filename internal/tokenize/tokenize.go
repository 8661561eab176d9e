// Package tokenize extracts identifier and word tokens used by the chunk
// index and the memory store.
package tokenize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinIdentifierLen is the shortest identifier kept by Identifiers
const MinIdentifierLen = 3

var identifierPattern = regexp.MustCompile(`[\p{L}\p{N}_](?:[\p{L}\p{N}_-]*[\p{L}\p{N}_])?`)

// stopWords holds common syntax keywords and English filler excluded from
// chunk identifier sets
var stopWords = toSet(
	// keywords shared by mainstream languages
	"and", "any", "as", "assert", "async", "await", "bool", "boolean", "break",
	"byte", "case", "catch", "char", "class", "const", "continue", "def", "default",
	"defer", "del", "delete", "do", "double", "elif", "else", "end", "enum", "except",
	"export", "extends", "false", "final", "finally", "float", "fn", "for", "from",
	"func", "function", "global", "go", "goto", "if", "impl", "implements", "import",
	"in", "instanceof", "int", "interface", "is", "lambda", "let", "long", "map",
	"match", "mod", "module", "mut", "new", "nil", "none", "not", "null", "or",
	"package", "pass", "private", "protected", "pub", "public", "raise", "range",
	"return", "self", "short", "static", "str", "string", "struct", "super",
	"switch", "this", "throw", "throws", "true", "try", "type", "typeof", "undefined",
	"use", "var", "void", "while", "with", "yield",
	// English filler
	"the", "that", "these", "those", "there", "then", "than", "they", "them",
	"their", "what", "when", "where", "which", "who", "why", "how", "was", "were",
	"are", "been", "being", "have", "has", "had", "does", "did", "will", "would",
	"should", "could", "can", "may", "might", "must", "shall", "into", "onto",
	"over", "under", "about", "after", "before", "also", "just", "only", "some",
	"such", "each", "other", "more", "most", "very", "your", "you", "our", "its",
	"but", "nor", "yet", "all", "out", "off", "too", "here", "for", "not", "this",
	"todo", "fixme",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether a lower-cased token is in the stop-set
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Identifiers returns every lower-cased identifier-like token of at least
// MinIdentifierLen characters in order of appearance. Stop words are kept;
// TopIdentifiers filters them.
func Identifiers(text string) []string {
	matches := identifierPattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if utf8.RuneCountInString(m) < MinIdentifierLen {
			continue
		}
		out = append(out, strings.ToLower(m))
	}
	return out
}

// TopIdentifiers returns up to n salient identifiers ranked by frequency.
// Ties keep first-seen order and stop words are discarded.
func TopIdentifiers(text string, n int) []string {
	type entry struct {
		token string
		count int
		first int
	}

	index := make(map[string]*entry)
	var entries []*entry
	for i, tok := range Identifiers(text) {
		if IsStopWord(tok) {
			continue
		}
		if e, ok := index[tok]; ok {
			e.count++
			continue
		}
		e := &entry{token: tok, count: 1, first: i}
		index[tok] = e
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.token
	}
	return out
}

// isIdeograph reports whether r belongs to a script written without spaces,
// where each character is treated as its own token
func isIdeograph(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r)
}

// Words splits text into lower-cased word tokens. Letters, digits and
// underscores form words; each ideograph is a separate token.
func Words(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isIdeograph(r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// UniqueWords returns the distinct tokens of Words in first-seen order
func UniqueWords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(text) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// WordSet returns the distinct tokens of Words as a set
func WordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(text) {
		set[w] = struct{}{}
	}
	return set
}

// Overlap counts the distinct query tokens present in set
func Overlap(query []string, set map[string]struct{}) int {
	n := 0
	for _, q := range query {
		if _, ok := set[q]; ok {
			n++
		}
	}
	return n
}
