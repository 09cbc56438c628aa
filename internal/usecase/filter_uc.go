// File: internal/usecase/filter_uc.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
	"safe-room-chat/internal/infra/logging"
	"safe-room-chat/internal/infra/metrics"
	"safe-room-chat/internal/textmatch"
	"safe-room-chat/internal/textscan"
)

// Mode selects which keyword stages run.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ParseMode maps unknown values to auto. "gemini" is accepted for remote.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeLocal:
		return ModeLocal
	case ModeRemote, "gemini":
		return ModeRemote
	default:
		return ModeAuto
	}
}

// Policy is one include/exclude rule set.
type Policy struct {
	Include         []string
	Exclude         []string
	IncludeRequired bool
	Mode            Mode
}

type FilterOptions struct {
	// Enabled turns the keyword stages on. URL scanning runs whenever a
	// reputation use case is configured.
	Enabled       bool
	Policy        Policy
	RemoteTimeout time.Duration
	// FailClosed blocks when the semantic stage fails instead of keeping the
	// local decision.
	FailClosed    bool
	MaxConcurrent int
}

// DetectDebug exposes the normalized inputs the keyword stages worked on.
type DetectDebug struct {
	TextNorm       string   `json:"text_norm"`
	IncludeAnyNorm []string `json:"include_any_norm"`
	ExcludeAnyNorm []string `json:"exclude_any_norm"`
}

// Compile-time check
var _ FilterUseCase = (*filterUC)(nil)

type FilterUseCase interface {
	// Evaluate runs the full pipeline for a chat message with the configured policy.
	Evaluate(ctx context.Context, text string) model.FilterDecision
	// Detect runs only the keyword stages with a caller supplied policy.
	Detect(ctx context.Context, text string, p Policy) (model.FilterDecision, DetectDebug)
}

type filterUC struct {
	reputation ReputationUseCase
	validator  adapter.SemanticValidator
	opts       FilterOptions
	log        *zerolog.Logger
}

// NewFilterUseCase wires the pipeline. reputation and validator may be nil,
// which disables the URL scan and the semantic stage respectively.
func NewFilterUseCase(reputation ReputationUseCase, validator adapter.SemanticValidator, opts FilterOptions, logger *zerolog.Logger) *filterUC {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 10 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Policy.Mode == "" {
		opts.Policy.Mode = ModeAuto
	}
	l := logger.With().Str("component", "FilterUC").Logger()
	return &filterUC{reputation: reputation, validator: validator, opts: opts, log: &l}
}

func (f *filterUC) Evaluate(ctx context.Context, text string) model.FilterDecision {
	defer logging.TraceDuration(f.log, "FilterUC.Evaluate")()
	log := logging.With(ctx, f.log)

	var findings []model.URLFinding
	if f.reputation != nil {
		var blocked *model.URLFinding
		findings, blocked = f.scanURLs(ctx, textscan.ExtractURLs(text))
		if blocked != nil {
			d := model.FilterDecision{
				Allowed:     false,
				IncludeHits: []string{},
				ExcludeHits: []string{},
				Reason:      fmt.Sprintf("Blocked URL %s (threat level %s).", blocked.URL, blocked.Assessment.Level),
				Source:      model.SourceURLReputation,
				URLs:        findings,
			}
			metrics.IncDecision(string(d.Source), false)
			log.Info().Str("url", blocked.URL).Str("level", blocked.Assessment.Level.String()).Msg("message blocked by url reputation")
			return d
		}
	}

	if !f.opts.Enabled {
		d := model.FilterDecision{
			Allowed:     true,
			IncludeHits: []string{},
			ExcludeHits: []string{},
			Reason:      "Content filter disabled.",
			Source:      model.SourceLocalOnly,
			URLs:        findings,
		}
		metrics.IncDecision(string(d.Source), true)
		return d
	}

	d, _ := f.keywordStages(ctx, text, f.opts.Policy)
	d.URLs = findings
	metrics.IncDecision(string(d.Source), d.Allowed)
	if !d.Allowed {
		log.Info().Str("source", string(d.Source)).Strs("exclude_hits", d.ExcludeHits).Msg("message blocked")
	}
	return d
}

func (f *filterUC) Detect(ctx context.Context, text string, p Policy) (model.FilterDecision, DetectDebug) {
	if p.Mode == "" {
		p.Mode = ModeAuto
	}
	d, dbg := f.keywordStages(ctx, text, p)
	metrics.IncDecision(string(d.Source), d.Allowed)
	return d, dbg
}

// scanURLs scores every URL occurrence with bounded concurrency. The first
// blocking URL in text order is returned. Lookup failures are recorded and
// treated as unknown.
func (f *filterUC) scanURLs(ctx context.Context, urls []string) ([]model.URLFinding, *model.URLFinding) {
	if len(urls) == 0 {
		return nil, nil
	}
	findings := make([]model.URLFinding, len(urls))
	var g errgroup.Group
	g.SetLimit(f.opts.MaxConcurrent)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			findings[i].URL = u
			a, err := f.reputation.Lookup(ctx, u)
			if err != nil {
				findings[i].Error = err.Error()
				logging.With(ctx, f.log).Warn().Err(err).Str("url", u).Msg("url treated as unknown")
				return nil
			}
			findings[i].Assessment = &a
			return nil
		})
	}
	_ = g.Wait()

	for i := range findings {
		if a := findings[i].Assessment; a != nil && a.ShouldBlock {
			return findings, &findings[i]
		}
	}
	return findings, nil
}

func (f *filterUC) keywordStages(ctx context.Context, text string, p Policy) (model.FilterDecision, DetectDebug) {
	textNorm := textmatch.Normalize(text)
	inc := textmatch.NewMatcher(p.Include)
	exc := textmatch.NewMatcher(p.Exclude)
	dbg := DetectDebug{TextNorm: textNorm, IncludeAnyNorm: inc.Terms(), ExcludeAnyNorm: exc.Terms()}

	local := localDecision(inc.Hits(textNorm), exc.Hits(textNorm), p.IncludeRequired)
	local.Source = model.SourceLocalOnly
	if !local.Allowed || p.Mode == ModeLocal {
		return local, dbg
	}
	if f.validator == nil {
		local.Reason = "Semantic validator unavailable; allowed by local pass. " + local.Reason
		return local, dbg
	}

	req := model.SemanticRequest{
		RequireInclude: p.IncludeRequired,
		IncludeAny:     dbg.IncludeAnyNorm,
		ExcludeAny:     dbg.ExcludeAnyNorm,
		Text:           textNorm,
	}
	cctx, cancel := context.WithTimeout(ctx, f.opts.RemoteTimeout)
	defer cancel()
	start := time.Now()
	verdict, err := f.validator.Validate(cctx, req)
	metrics.ObserveRemoteCall(f.validator.Name(), time.Since(start), err == nil)
	if err != nil {
		logging.With(ctx, f.log).Warn().Err(err).Str("validator", f.validator.Name()).Msg("semantic stage failed")
		return f.remoteFailure(local, err), dbg
	}
	return mergeVerdict(local, verdict, p.IncludeRequired), dbg
}

func (f *filterUC) remoteFailure(local model.FilterDecision, err error) model.FilterDecision {
	d := local
	d.Source = model.SourceRemoteErrorFallback
	d.RemoteError = err.Error()
	if f.opts.FailClosed {
		d.Allowed = false
		d.Reason = "Semantic validator error; blocked by fail-closed policy."
		return d
	}
	d.Reason = "Semantic validator error; allowed by local pass. " + local.Reason
	return d
}

// localDecision applies exclude-wins: any exclude hit blocks, otherwise an
// include hit is needed only when includes are required.
func localDecision(incHits, excHits []string, includeRequired bool) model.FilterDecision {
	allowed := allow(incHits, excHits, includeRequired)
	var reason string
	switch {
	case allowed && includeRequired:
		reason = "Included terms present and no excluded terms found."
	case allowed:
		reason = "No excluded terms found."
	case len(excHits) > 0:
		reason = "Found excluded terms."
	default:
		reason = "No include terms found."
	}
	return model.FilterDecision{
		Allowed:     allowed,
		IncludeHits: incHits,
		ExcludeHits: excHits,
		Reason:      reason,
	}
}

// mergeVerdict unions remote hits into the local ones and re-applies the
// exclude-wins rule. The remote match flag alone never decides.
func mergeVerdict(local model.FilterDecision, v model.SemanticVerdict, includeRequired bool) model.FilterDecision {
	incHits := sortedUnion(local.IncludeHits, textmatch.NormalizeTerms(v.IncludeHits))
	excHits := sortedUnion(local.ExcludeHits, textmatch.NormalizeTerms(v.ExcludeHits))
	allowed := allow(incHits, excHits, includeRequired)

	reason := strings.TrimSpace(v.Reason)
	if reason == "" {
		reason = local.Reason
	}
	if len(excHits) > 0 && !strings.Contains(strings.ToLower(reason), "exclude") {
		reason = "Found excluded terms: " + strings.Join(excHits, ", ")
	}
	return model.FilterDecision{
		Allowed:     allowed,
		IncludeHits: incHits,
		ExcludeHits: excHits,
		Reason:      reason,
		Source:      model.SourceLocalThenRemote,
	}
}

func allow(incHits, excHits []string, includeRequired bool) bool {
	return (len(incHits) > 0 || !includeRequired) && len(excHits) == 0
}

func sortedUnion(a, b []string) []string {
	out := textmatch.Union(a, b)
	sort.Strings(out)
	return out
}
