package ranker

import (
	"sort"
	"strings"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

// Hit is a scored candidate. Score is ephemeral and never leaves the
// ranker.
type Hit struct {
	Result Result
	Score  int
	Exact  bool
	Prefix bool
	// weight is population for cities and rating for facilities.
	weight float64
}

// CityHit wraps a city candidate for ranking against the normalised term.
func CityHit(c directory.City, term string, score int) Hit {
	h := Hit{Result: NewCityResult(c), Score: score, weight: float64(c.Population)}
	h.Exact, h.Prefix = nameMatch(c.Name, term)
	return h
}

// FacilityHit wraps a facility candidate for ranking against the normalised
// term.
func FacilityHit(f directory.Facility, term string, score int) Hit {
	h := Hit{Result: NewFacilityResult(f), Score: score, weight: f.Rating}
	h.Exact, h.Prefix = nameMatch(f.Name, term)
	return h
}

func nameMatch(name, term string) (exact, prefix bool) {
	if term == "" {
		return false, false
	}
	n := textmatch.Normalize(name)
	return n == term, strings.HasPrefix(n, term)
}

// Rank orders hits and strips their scores. With a term: cities before
// facilities, exact name matches first, then prefix matches, then cities by
// population and facilities by rating, both descending. Without a term the
// exact and prefix keys are inert and the same ordering reduces to cities by
// population then facilities by rating. The sort is stable, so ties keep
// their input order.
func Rank(hits []Hit) []Result {
	sorted := make([]Hit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	result := make([]Result, len(sorted))
	for i, h := range sorted {
		result[i] = h.Result
	}
	return result
}

func less(a, b Hit) bool {
	aCity, bCity := a.Result.Type == KindCity, b.Result.Type == KindCity
	if aCity != bCity {
		return aCity
	}
	if a.Exact != b.Exact {
		return a.Exact
	}
	if a.Prefix != b.Prefix {
		return a.Prefix
	}
	return a.weight > b.weight
}
