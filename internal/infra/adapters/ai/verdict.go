// File: internal/infra/adapters/ai/verdict.go
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
)

// systemInstruction is shared by every validator so providers judge the same rule.
const systemInstruction = "You are a precise content filter. Decide if the TEXT matches the rule:\n" +
	"- NORMAL: MATCH = (at least one INCLUDE_ANY is semantically present) AND (no EXCLUDE_ANY present).\n" +
	"- EXCLUDE-ONLY (REQUIRE_INCLUDE=false): ignore include; MATCH = (no EXCLUDE_ANY present).\n" +
	"- Consider paraphrases.\n" +
	`Return STRICT JSON ONLY: {"match":bool,"include_hits":[],"exclude_hits":[],"reason":str}`

func buildPrompt(req model.SemanticRequest) (string, error) {
	if req.IncludeAny == nil {
		req.IncludeAny = []string{}
	}
	if req.ExcludeAny == nil {
		req.ExcludeAny = []string{}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode validator request: %w", err)
	}
	return string(b), nil
}

type rawVerdict struct {
	Match       bool   `json:"match"`
	IncludeHits []any  `json:"include_hits"`
	ExcludeHits []any  `json:"exclude_hits"`
	Reason      string `json:"reason"`
}

// parseVerdict decodes a model reply. Replies wrapped in prose or code fences
// are accepted when they contain one balanced JSON object; anything else is
// ErrMalformedResponse, never a match.
func parseVerdict(text string) (model.SemanticVerdict, error) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		obj, ok := extractJSONObject(text)
		if !ok {
			return model.SemanticVerdict{}, fmt.Errorf("%w: non-JSON validator reply", domain.ErrMalformedResponse)
		}
		raw = rawVerdict{}
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			return model.SemanticVerdict{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
	}

	v := model.SemanticVerdict{
		Match:       raw.Match,
		IncludeHits: stringify(raw.IncludeHits),
		ExcludeHits: stringify(raw.ExcludeHits),
		Reason:      raw.Reason,
	}
	if v.Reason == "" {
		v.Reason = "No match"
		if v.Match {
			v.Reason = "Match"
		}
	}
	return v, nil
}

// extractJSONObject returns the first balanced {...} block in s that decodes
// as JSON.
func extractJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start != -1; {
		depth := 0
		inString, escaped := false, false
	scan:
		for i := start; i < len(s); i++ {
			ch := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && ch == '\\':
				escaped = true
			case ch == '"':
				inString = !inString
			case inString:
			case ch == '{':
				depth++
			case ch == '}':
				depth--
				if depth == 0 {
					if cand := s[start : i+1]; json.Valid([]byte(cand)) {
						return cand, true
					}
					break scan
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

func stringify(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64, bool:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
