package model

// DecisionSource tags the stage that produced the final verdict.
type DecisionSource string

const (
	SourceURLReputation       DecisionSource = "url-reputation"
	SourceLocalOnly           DecisionSource = "local-only"
	SourceLocalThenRemote     DecisionSource = "local-then-remote"
	SourceRemoteErrorFallback DecisionSource = "remote-error-fallback"
)

// URLFinding records the reputation check of one extracted URL. Error is set
// when the lookup failed and the URL was treated as unknown.
type URLFinding struct {
	URL        string            `json:"url"`
	Assessment *ThreatAssessment `json:"assessment,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// FilterDecision is the single allow/block verdict for a message.
type FilterDecision struct {
	Allowed     bool           `json:"match"`
	IncludeHits []string       `json:"include_hits"`
	ExcludeHits []string       `json:"exclude_hits"`
	Reason      string         `json:"reason"`
	Source      DecisionSource `json:"source"`
	RemoteError string         `json:"remote_error,omitempty"`
	URLs        []URLFinding   `json:"urls,omitempty"`
}

// SemanticVerdict is the structured answer of the remote semantic validator.
type SemanticVerdict struct {
	Match       bool     `json:"match"`
	IncludeHits []string `json:"include_hits"`
	ExcludeHits []string `json:"exclude_hits"`
	Reason      string   `json:"reason"`
}

// SemanticRequest carries normalized text and terms to the remote validator.
type SemanticRequest struct {
	RequireInclude bool     `json:"REQUIRE_INCLUDE"`
	IncludeAny     []string `json:"INCLUDE_ANY"`
	ExcludeAny     []string `json:"EXCLUDE_ANY"`
	Text           string   `json:"TEXT"`
}
