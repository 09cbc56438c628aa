// Package textscan finds URL-like tokens in chat text.
package textscan

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

const defaultScheme = "http://"

var relaxed = xurls.Relaxed()

// ExtractURLs returns every URL in text in order of appearance. Duplicates are
// kept. Tokens without a scheme get http:// prefixed; bare e-mail addresses are
// not URLs.
func ExtractURLs(text string) []string {
	idx := relaxed.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(idx))
	for _, loc := range idx {
		u := text[loc[0]:loc[1]]
		if !strings.Contains(u, "://") {
			if isMailAddress(text, loc[0], u) {
				continue
			}
			u = defaultScheme + u
		}
		out = append(out, u)
	}
	return out
}

func isMailAddress(text string, start int, token string) bool {
	if strings.Contains(token, "@") || strings.HasPrefix(strings.ToLower(token), "mailto:") {
		return true
	}
	return start > 0 && text[start-1] == '@'
}
