//go:build !integration

package textscan

import (
	"reflect"
	"testing"
)

func TestExtractURLs(t *testing.T) {
	t.Run("should normalize scheme-less links and keep duplicates", func(t *testing.T) {
		got := ExtractURLs("see example.com and https://foo.org/path, then example.com again")
		want := []string{"http://example.com", "https://foo.org/path", "http://example.com"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("should return empty for plain text", func(t *testing.T) {
		if got := ExtractURLs("no links in here"); len(got) != 0 {
			t.Fatalf("expected no urls, got %v", got)
		}
	})

	t.Run("should skip e-mail addresses", func(t *testing.T) {
		if got := ExtractURLs("mail me at someone@example.com"); len(got) != 0 {
			t.Fatalf("expected no urls, got %v", got)
		}
	})
}
