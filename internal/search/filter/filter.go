// Package filter narrows the record store with the structured predicates of a
// query. Every active predicate must pass; inactive ones are vacuously true.
// The package is pure: it never mutates the records it is given.
package filter

import (
	"strings"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

// Options control which predicates Apply evaluates.
type Options struct {
	// MatchText enables the free-text substring predicate. When false the
	// caller gates free text elsewhere (the scorer).
	MatchText bool
}

// Candidates are the records that passed every active predicate, in store
// order.
type Candidates struct {
	Cities     []directory.City
	Facilities []directory.Facility
}

// Len is the number of candidates of both kinds.
func (c Candidates) Len() int { return len(c.Cities) + len(c.Facilities) }

// Apply evaluates q's filters against every record in snap.
func Apply(snap *directory.Snapshot, q query.Query, opts Options) Candidates {
	var out Candidates
	for _, c := range snap.Cities() {
		if City(c, q, opts) {
			out.Cities = append(out.Cities, c)
		}
	}
	for _, f := range snap.Facilities() {
		if Facility(f, q, opts) {
			out.Facilities = append(out.Facilities, f)
		}
	}
	return out
}

// City reports whether c passes q's active predicates. Facility-only
// predicates (care type, amenities, rating) exclude cities when active.
func City(c directory.City, q query.Query, opts Options) bool {
	f := q.Filters
	if opts.MatchText && q.HasTerm() {
		if !containsFold(c.Name, q.Term) &&
			!containsFold(c.State, q.Term) &&
			!containsFold(c.StateAbbr, q.Term) {
			return false
		}
	}
	if f.State != "" && !strings.EqualFold(c.StateAbbr, f.State) {
		return false
	}
	if f.CostBracket != "" && !f.CostBracket.Contains(c.AssistedLivingCost) {
		return false
	}
	if f.CareType != "" || len(f.Amenities) > 0 || f.RatingFloor != nil {
		return false
	}
	return withinRadius(c.Coordinates, f.Geo)
}

// Facility reports whether fac passes q's active predicates.
func Facility(fac directory.Facility, q query.Query, opts Options) bool {
	f := q.Filters
	if opts.MatchText && q.HasTerm() && !containsFold(fac.Name, q.Term) {
		return false
	}
	if f.State != "" && !strings.EqualFold(fac.StateCode(), f.State) {
		return false
	}
	if f.CostBracket != "" && !f.CostBracket.Contains(fac.MonthlyAvg) {
		return false
	}
	if f.CareType != "" && !hasTag(fac.CareTypes, f.CareType) {
		return false
	}
	for _, want := range f.Amenities {
		if !hasTag(fac.Amenities, want) {
			return false
		}
	}
	if f.RatingFloor != nil && fac.Rating < float64(*f.RatingFloor) {
		return false
	}
	return withinRadius(fac.Coordinates, f.Geo)
}

// withinRadius is fail-closed: an active radius filter excludes records
// without coordinates.
func withinRadius(at *directory.LatLng, geo *query.Geo) bool {
	if geo == nil {
		return true
	}
	if at == nil {
		return false
	}
	radius := geo.RadiusMiles
	if radius <= 0 {
		radius = query.DefaultRadiusMiles
	}
	return Haversine(directory.LatLng{Lat: geo.Lat, Lng: geo.Lng}, *at) <= radius
}

func hasTag(tags []string, want string) bool {
	want = textmatch.Hyphenate(want)
	for _, t := range tags {
		if textmatch.Hyphenate(t) == want {
			return true
		}
	}
	return false
}

func containsFold(s, term string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(textmatch.Normalize(s), term)
}
