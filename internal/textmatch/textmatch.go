// Package textmatch normalizes free text and matches filter terms against it.
// The same normalization feeds the local keyword pass and the term sets sent to
// the remote validator, so both stages see identical input.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize lowercases s and collapses every whitespace run to one space.
// Whitespace is anything unicode.IsSpace accepts, including NBSP and U+2003.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeTerms normalizes each term, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = Normalize(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Matcher holds a normalized term set.
type Matcher struct {
	terms []string
}

func NewMatcher(terms []string) *Matcher {
	return &Matcher{terms: NormalizeTerms(terms)}
}

func (m *Matcher) Terms() []string {
	return append([]string(nil), m.terms...)
}

// Hits returns the terms found in already-normalized text, in term order.
func (m *Matcher) Hits(textNorm string) []string {
	hits := []string{}
	for _, t := range m.terms {
		if Contains(textNorm, t) {
			hits = append(hits, t)
		}
	}
	return hits
}

// Contains matches a normalized term against normalized text. Phrases (terms
// with a space) match as substrings; single words need word boundaries.
func Contains(textNorm, term string) bool {
	if term == "" {
		return false
	}
	if strings.Contains(term, " ") {
		return strings.Contains(textNorm, term)
	}
	return containsWord(textNorm, term)
}

func containsWord(text, word string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if !wordRuneBefore(text, start) && !wordRuneAt(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func wordRuneBefore(s string, i int) bool {
	if i <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordRuneAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Union merges term lists, keeping first-seen order and dropping duplicates.
func Union(lists ...[]string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, l := range lists {
		for _, t := range l {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
