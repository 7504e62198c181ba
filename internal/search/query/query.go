// Package query defines the search request model and its lenient parser.
// Unparseable numeric filters are reported but treated as absent; they never
// reject a request.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/seniorliving/directory-search/internal/search/textmatch"
	apperrors "github.com/seniorliving/directory-search/pkg/errors"
)

const (
	DefaultPageSize    = 50
	DefaultRadiusMiles = 25.0
)

// CostBracket classifies a monthly cost.
type CostBracket string

const (
	CostUnder3000  CostBracket = "under-3000"
	Cost3000To4000 CostBracket = "3000-4000"
	Cost4000To5000 CostBracket = "4000-5000"
	Cost5000To6000 CostBracket = "5000-6000"
	CostOver6000   CostBracket = "over-6000"
)

// Brackets lists every recognised bracket in ascending order.
var Brackets = []CostBracket{CostUnder3000, Cost3000To4000, Cost4000To5000, Cost5000To6000, CostOver6000}

// Contains reports whether cost falls inside the bracket. The three middle
// brackets are closed on both ends, so 4000 and 5000 belong to two brackets.
func (b CostBracket) Contains(cost int) bool {
	switch b {
	case CostUnder3000:
		return cost < 3000
	case Cost3000To4000:
		return cost >= 3000 && cost <= 4000
	case Cost4000To5000:
		return cost >= 4000 && cost <= 5000
	case Cost5000To6000:
		return cost >= 5000 && cost <= 6000
	case CostOver6000:
		return cost >= 6000
	default:
		return true
	}
}

// ParseBracket returns the bracket named by s, if any.
func ParseBracket(s string) (CostBracket, bool) {
	b := CostBracket(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Brackets {
		if b == known {
			return b, true
		}
	}
	return "", false
}

// Geo is a radius filter around a user location.
type Geo struct {
	Lat         float64
	Lng         float64
	RadiusMiles float64
}

// Filters are the structured, optional narrowing predicates.
type Filters struct {
	State       string
	CareType    string
	CostBracket CostBracket
	Amenities   []string
	RatingFloor *int
	Geo         *Geo
}

// Query is a single search request.
type Query struct {
	Term     string
	Filters  Filters
	Page     int
	PageSize int
}

// HasTerm reports whether the query carries free text.
func (q Query) HasTerm() bool { return q.Term != "" }

// New builds a query for term with default paging.
func New(term string) Query {
	return Query{Term: textmatch.Normalize(term), Page: 1, PageSize: DefaultPageSize}
}

// CacheKey renders the query in a canonical form; equal queries produce
// equal keys regardless of parameter order.
func (q Query) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|state=%s|type=%s|cost=%s", q.Term, q.Filters.State, q.Filters.CareType, q.Filters.CostBracket)
	amenities := append([]string(nil), q.Filters.Amenities...)
	sort.Strings(amenities)
	fmt.Fprintf(&b, "|amenities=%s", strings.Join(amenities, ","))
	if q.Filters.RatingFloor != nil {
		fmt.Fprintf(&b, "|rating=%d", *q.Filters.RatingFloor)
	}
	if g := q.Filters.Geo; g != nil {
		fmt.Fprintf(&b, "|geo=%.5f,%.5f,%.2f", g.Lat, g.Lng, g.RadiusMiles)
	}
	fmt.Fprintf(&b, "|page=%d|limit=%d", q.Page, q.PageSize)
	return b.String()
}

// Limits bounds paging and supplies defaults during parsing.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultRadius   float64
}

func (l Limits) withDefaults() Limits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = DefaultPageSize
	}
	if l.MaxPageSize < l.DefaultPageSize {
		l.MaxPageSize = l.DefaultPageSize
	}
	if l.DefaultRadius <= 0 {
		l.DefaultRadius = DefaultRadiusMiles
	}
	return l
}

// Parse builds a Query from request parameters: q, state, type, cost,
// amenities, rating, lat, lng, distance, page and limit. It returns the
// InvalidFilterValue problems it ignored so callers can log them.
func Parse(v url.Values, limits Limits) (Query, []error) {
	limits = limits.withDefaults()
	var problems []error
	invalid := func(name, raw string) {
		problems = append(problems, fmt.Errorf("%w: %s=%q", apperrors.ErrInvalidFilterValue, name, raw))
	}

	q := Query{
		Term:     textmatch.Normalize(v.Get("q")),
		Page:     1,
		PageSize: limits.DefaultPageSize,
	}

	if s := strings.TrimSpace(v.Get("state")); s != "" {
		q.Filters.State = strings.ToUpper(s)
	}
	if s := strings.TrimSpace(v.Get("type")); s != "" {
		q.Filters.CareType = textmatch.Hyphenate(s)
	}
	if s := v.Get("cost"); s != "" {
		if b, ok := ParseBracket(s); ok {
			q.Filters.CostBracket = b
		} else {
			invalid("cost", s)
		}
	}
	for _, raw := range v["amenities"] {
		for _, a := range strings.Split(raw, ",") {
			if a = textmatch.Hyphenate(a); a != "" {
				q.Filters.Amenities = append(q.Filters.Amenities, a)
			}
		}
	}
	if s := v.Get("rating"); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			q.Filters.RatingFloor = &n
		} else {
			invalid("rating", s)
		}
	}
	if lat, lng := v.Get("lat"), v.Get("lng"); lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		ln, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		switch {
		case errLat != nil:
			invalid("lat", lat)
		case errLng != nil:
			invalid("lng", lng)
		case la < -90 || la > 90 || ln < -180 || ln > 180:
			invalid("lat,lng", lat+","+lng)
		default:
			g := &Geo{Lat: la, Lng: ln, RadiusMiles: limits.DefaultRadius}
			if d := v.Get("distance"); d != "" {
				if r, err := strconv.ParseFloat(strings.TrimSpace(d), 64); err == nil && r > 0 {
					g.RadiusMiles = r
				} else {
					invalid("distance", d)
				}
			}
			q.Filters.Geo = g
		}
	}
	if s := v.Get("page"); s != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			if n > 1 {
				q.Page = n
			}
		} else {
			invalid("page", s)
		}
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		switch {
		case err != nil || n < 1:
			invalid("limit", s)
		case n > limits.MaxPageSize:
			q.PageSize = limits.MaxPageSize
		default:
			q.PageSize = n
		}
	}
	return q, problems
}
