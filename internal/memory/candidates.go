package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Candidate fragment length bounds, in characters
const (
	minCandidateLen = 6
	maxCandidateLen = 120
)

var (
	sentenceEnd = regexp.MustCompile(`[。．.!?！？；;]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// bulletNoise is stripped from both ends of every line
const bulletNoise = " -•*\t"

// ExtractCandidates splits text into lines and sentences and returns the
// first k fragments whose length is within bounds. k <= 0 returns nil.
func ExtractCandidates(text string, k int) []string {
	if k <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(line, bulletNoise))
		if line == "" {
			continue
		}
		for _, seg := range sentenceEnd.Split(line, -1) {
			seg = strings.TrimSpace(seg)
			n := utf8.RuneCountInString(seg)
			if n < minCandidateLen || n > maxCandidateLen {
				continue
			}
			out = append(out, seg)
			if len(out) == k {
				return out
			}
		}
	}
	return out
}

// Normalize collapses whitespace runs and case-folds content. Two items
// with the same normalized form are the same fact.
func Normalize(content string) string {
	collapsed := whitespace.ReplaceAllString(strings.TrimSpace(content), " ")
	return cases.Fold().String(collapsed)
}
