// Package engine runs the search pipeline over a resident snapshot:
// filter, score, rank, paginate. The pipeline is synchronous and never
// mutates the snapshot, so one Engine serves concurrent requests.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/filter"
	"github.com/seniorliving/directory-search/internal/search/paginate"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/internal/search/scorer"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
	"github.com/seniorliving/directory-search/pkg/tracing"
)

// TextMode selects how free text narrows the candidate set.
type TextMode string

const (
	// TextSubstring applies the filter engine's substring predicate before
	// scoring: names for every record, state name or code for cities only.
	// It is the default.
	TextSubstring TextMode = "substring"
	// TextScored gates free text on the scorer alone: any record with a
	// positive score survives, including fuzzy matches and facilities
	// matched by state.
	TextScored TextMode = "scored"
)

// ParseTextMode maps a config value to a TextMode.
func ParseTextMode(s string) (TextMode, error) {
	switch TextMode(s) {
	case "", TextSubstring:
		return TextSubstring, nil
	case TextScored:
		return TextScored, nil
	default:
		return "", fmt.Errorf("unknown text match mode %q", s)
	}
}

// DefaultSuggestions is the autocomplete list size.
const DefaultSuggestions = 10

// Response is the page returned to callers.
type Response struct {
	Total   int             `json:"total" msgpack:"total"`
	Page    int             `json:"page" msgpack:"page"`
	Limit   int             `json:"limit" msgpack:"limit"`
	Pages   int             `json:"pages" msgpack:"pages"`
	Results []ranker.Result `json:"results" msgpack:"results"`
}

type Engine struct {
	mode   TextMode
	logger *slog.Logger
}

// New builds an engine; an empty mode means TextSubstring.
func New(mode TextMode) *Engine {
	if mode == "" {
		mode = TextSubstring
	}
	return &Engine{
		mode:   mode,
		logger: slog.Default().With("component", "search-engine"),
	}
}

// Mode reports the engine's free-text mode.
func (e *Engine) Mode() TextMode { return e.mode }

// Search evaluates q against snap. A nil snapshot yields an empty page.
func (e *Engine) Search(ctx context.Context, snap *directory.Snapshot, q query.Query) Response {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}
	page := max(q.Page, 1)

	hits := e.Hits(ctx, snap, q)

	_, span := tracing.StartChildSpan(ctx, "search.rank")
	ranked := ranker.Rank(hits)
	span.End()

	_, span = tracing.StartChildSpan(ctx, "search.paginate")
	p := paginate.Slice(ranked, page, pageSize)
	span.SetAttr("total", p.Total)
	span.End()

	e.logger.Debug("search evaluated",
		"term", q.Term,
		"candidates", len(hits),
		"page", p.Page,
		"pages", p.Pages,
	)

	return Response{
		Total:   p.Total,
		Page:    p.Page,
		Limit:   pageSize,
		Pages:   p.Pages,
		Results: p.Items,
	}
}

// Hits runs the filter and scoring stages and returns the surviving
// candidates in store order, cities first.
func (e *Engine) Hits(ctx context.Context, snap *directory.Snapshot, q query.Query) []ranker.Hit {
	if snap == nil {
		return nil
	}

	_, span := tracing.StartChildSpan(ctx, "search.filter")
	candidates := filter.Apply(snap, q, filter.Options{MatchText: e.mode == TextSubstring})
	span.SetAttr("candidates", candidates.Len())
	span.End()

	_, span = tracing.StartChildSpan(ctx, "search.score")
	defer span.End()

	hits := make([]ranker.Hit, 0, candidates.Len())
	for _, c := range candidates.Cities {
		score := 0
		if q.HasTerm() {
			if score = scorer.City(c, q.Term); score == 0 {
				continue
			}
		}
		hits = append(hits, ranker.CityHit(c, q.Term, score))
	}
	for _, f := range candidates.Facilities {
		score := 0
		if q.HasTerm() {
			if score = scorer.Facility(f, q.Term); score == 0 {
				continue
			}
		}
		hits = append(hits, ranker.FacilityHit(f, q.Term, score))
	}
	span.SetAttr("matched", len(hits))
	return hits
}

// Suggest scores city records only against term and returns the top limit
// by descending score, ties kept in store order. Callers enforce any
// minimum input length.
func (e *Engine) Suggest(snap *directory.Snapshot, term string, limit int) []ranker.CityResult {
	term = textmatch.Normalize(term)
	if snap == nil || term == "" {
		return []ranker.CityResult{}
	}
	if limit <= 0 {
		limit = DefaultSuggestions
	}

	type scored struct {
		city  directory.City
		score int
	}
	matches := make([]scored, 0, 32)
	for _, c := range snap.Cities() {
		if s := scorer.City(c, term); s > 0 {
			matches = append(matches, scored{c, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]ranker.CityResult, len(matches))
	for i, m := range matches {
		out[i] = *ranker.NewCityResult(m.city).City
	}
	return out
}
