package model

import (
	"fmt"
	"strings"
	"time"
)

// ThreatLevel is the ordered reputation grade of a URL.
// Unknown sorts below Clean and never blocks.
type ThreatLevel int

const (
	ThreatUnknown ThreatLevel = iota
	ThreatClean
	ThreatSuspicious
	ThreatLow
	ThreatMedium
	ThreatHigh
)

var threatNames = map[ThreatLevel]string{
	ThreatUnknown:    "UNKNOWN",
	ThreatClean:      "CLEAN",
	ThreatSuspicious: "SUSPICIOUS",
	ThreatLow:        "LOW",
	ThreatMedium:     "MEDIUM",
	ThreatHigh:       "HIGH",
}

func (l ThreatLevel) String() string {
	if s, ok := threatNames[l]; ok {
		return s
	}
	return "UNKNOWN"
}

func ParseThreatLevel(s string) (ThreatLevel, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for lvl, name := range threatNames {
		if name == want {
			return lvl, nil
		}
	}
	return ThreatUnknown, fmt.Errorf("unknown threat level %q", s)
}

func (l ThreatLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *ThreatLevel) UnmarshalText(b []byte) error {
	v, err := ParseThreatLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// DetectionStats are per-engine verdict counts reported by the reputation source.
type DetectionStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

func (s DetectionStats) Total() int {
	return s.Malicious + s.Suspicious + s.Harmless + s.Undetected
}

// Classify grades detection counts. Thresholds are percentages of all engines
// and are checked in order; the first match wins.
func Classify(stats DetectionStats) (ThreatLevel, float64) {
	total := stats.Total()
	if total <= 0 {
		return ThreatUnknown, 0
	}
	maliciousPct := float64(stats.Malicious) / float64(total) * 100
	suspiciousPct := float64(stats.Suspicious) / float64(total) * 100

	switch {
	case maliciousPct >= 5:
		return ThreatHigh, maliciousPct + suspiciousPct
	case maliciousPct >= 2:
		return ThreatMedium, maliciousPct + suspiciousPct
	case suspiciousPct >= 10:
		return ThreatMedium, maliciousPct + suspiciousPct
	case maliciousPct > 0 || suspiciousPct >= 5:
		return ThreatLow, maliciousPct + suspiciousPct
	case suspiciousPct > 0:
		return ThreatSuspicious, suspiciousPct
	default:
		return ThreatClean, 0
	}
}

// ShouldBlock reports whether level reaches the configured threshold.
func ShouldBlock(level, threshold ThreatLevel) bool {
	if level == ThreatUnknown {
		return false
	}
	return level >= threshold
}

// ReputationReport is the raw answer of the reputation source for one URL.
type ReputationReport struct {
	URL        string
	Stats      DetectionStats
	Categories []string
}

// ThreatAssessment is the graded outcome for one URL.
type ThreatAssessment struct {
	URL         string         `json:"url"`
	Stats       DetectionStats `json:"stats"`
	Level       ThreatLevel    `json:"threat_level"`
	Score       float64        `json:"threat_score"`
	ShouldBlock bool           `json:"should_block"`
	Categories  []string       `json:"categories,omitempty"`
}

func NewThreatAssessment(report ReputationReport, threshold ThreatLevel) ThreatAssessment {
	level, score := Classify(report.Stats)
	return ThreatAssessment{
		URL:         report.URL,
		Stats:       report.Stats,
		Level:       level,
		Score:       score,
		ShouldBlock: ShouldBlock(level, threshold),
		Categories:  report.Categories,
	}
}

// ReputationCacheEntry is a memoized successful lookup. Failed lookups are never cached.
type ReputationCacheEntry struct {
	URL        string           `json:"url"`
	Assessment ThreatAssessment `json:"assessment"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

func (e *ReputationCacheEntry) Valid(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}
