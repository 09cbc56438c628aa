//go:build !integration

package textmatch

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"should collapse ascii whitespace", "  Hello\t\tWORLD \n again ", "hello world again"},
		{"should collapse a no-break space", "Preheat\u00a0the oven", "preheat the oven"},
		{"should collapse an em space", "preheat\u2003the\u2003oven", "preheat the oven"},
		{"should collapse a vertical tab", "preheat\vthe oven", "preheat the oven"},
		{"should collapse next line", "preheat\u0085the oven", "preheat the oven"},
		{"should trim unicode whitespace at the ends", "\u00a0 oven \u3000", "oven"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTerms(t *testing.T) {
	got := NormalizeTerms([]string{"Bake", " ", "bake", "Preheat   the Oven"})
	want := []string{"bake", "preheat the oven"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestContains(t *testing.T) {
	cases := []struct {
		name string
		text string
		term string
		want bool
	}{
		{"should match a whole word", "let us bake a cake", "bake", true},
		{"should not match inside a longer word", "the bakery is open", "bake", false},
		{"should match a word at the end", "time to bake", "bake", true},
		{"should match after punctuation", "cake,bake!", "bake", true},
		{"should retry after a partial hit", "bakeoff then bake", "bake", true},
		{"should not match with underscore neighbour", "my_bake_job", "bake", false},
		{"should match a phrase as substring", "please preheat the oven now", "preheat the oven", true},
		{"should match a phrase spanning a word prefix", "xpreheat the ovens", "preheat the oven", true},
		{"should handle non ascii words", "café au lait", "café", true},
		{"should ignore empty term", "anything", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Contains(tc.text, tc.term); got != tc.want {
				t.Errorf("Contains(%q, %q) = %v, want %v", tc.text, tc.term, got, tc.want)
			}
		})
	}
}

func TestMatcherHits(t *testing.T) {
	m := NewMatcher([]string{"Recipe", "step by step", "oven"})
	hits := m.Hits(Normalize("A Step  by STEP recipe"))
	want := []string{"recipe", "step by step"}
	if !reflect.DeepEqual(hits, want) {
		t.Fatalf("expected %v, got %v", want, hits)
	}
	if len(m.Terms()) != 3 {
		t.Errorf("expected three terms, got %v", m.Terms())
	}
}

func TestUnion(t *testing.T) {
	got := Union([]string{"a", "b"}, []string{"b", "c"}, nil)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
