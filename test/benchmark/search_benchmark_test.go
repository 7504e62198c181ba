package benchmark

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/internal/search/scorer"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

var cityNames = []string{
	"Austin", "Boise", "Portland", "Springfield", "San Antonio", "San Diego",
	"Phoenix", "Sacramento", "Santa Fe", "Salem", "Saint Paul", "Austintown",
}

var stateNames = []string{"Texas", "Idaho", "Oregon", "Illinois", "California", "Arizona", "New Mexico", "Minnesota"}

// syntheticSnapshot builds n cities with four facilities each.
func syntheticSnapshot(n int) *directory.Snapshot {
	cities := make([]directory.City, 0, n)
	facilities := make([]directory.Facility, 0, n*4)
	for i := range n {
		name := fmt.Sprintf("%s %d", cityNames[i%len(cityNames)], i)
		state := stateNames[i%len(stateNames)]
		slug := directory.Slugify(name)
		cities = append(cities, directory.City{
			Name:               name,
			State:              state,
			Slug:               slug,
			Population:         (i * 7919) % 2_000_000,
			AssistedLivingCost: 2500 + (i*37)%3000,
			Coordinates:        &directory.LatLng{Lat: 25 + float64(i%20), Lng: -120 + float64(i%40)},
		})
		for j := range 4 {
			facilities = append(facilities, directory.Facility{
				ID:         fmt.Sprintf("%d-%d", i, j),
				Name:       fmt.Sprintf("Sunrise of %s %d", name, j),
				State:      state,
				CitySlug:   slug,
				Rating:     float64((i+j)%50) / 10,
				CareTypes:  []string{"assisted-living", "memory-care"}[:1+j%2],
				Amenities:  []string{"pool", "wifi", "garden"}[:1+j%3],
				MonthlyAvg: 3000 + (i*13+j*101)%4000,
			})
		}
	}
	return directory.NewSnapshot(cities, facilities, directory.Meta{Source: "benchmark"})
}

// BenchmarkQueryParse measures request parsing for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name string
		raw  string
	}{
		{"term", "q=austin"},
		{"filters", "q=san&state=CA&type=Memory+Care&cost=3000-4000"},
		{"amenities", "amenities=pool,wifi&amenities=garden&rating=4"},
		{"geo", "lat=30.2672&lng=-97.7431&distance=25&page=3&limit=20"},
	}
	for _, q := range queries {
		values, err := url.ParseQuery(q.raw)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				query.Parse(values, query.Limits{})
			}
		})
	}
}

// BenchmarkScore measures the per-record scorer, including the fuzzy
// fallback path.
func BenchmarkScore(b *testing.B) {
	city := directory.City{Name: "Austin", State: "Texas", StateAbbr: "TX", Population: 961855}
	for _, term := range []string{"austin", "aus", "tex", "austn", "zzzz"} {
		b.Run(term, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				scorer.City(city, term)
			}
		})
	}
}

func BenchmarkDistance(b *testing.B) {
	pairs := [][2]string{{"phonix", "phoenix"}, {"sacramento", "sacramneto"}, {"san antonio", "santa ana"}}
	b.ReportAllocs()
	for b.Loop() {
		for _, p := range pairs {
			textmatch.Distance(p[0], p[1])
		}
	}
}

// BenchmarkSearch measures the full filter, score, rank and paginate
// pipeline for snapshot sizes up to the full directory.
func BenchmarkSearch(b *testing.B) {
	queries := map[string]query.Query{
		"term":    query.New("san"),
		"fuzzy":   query.New("sprngfield"),
		"no_term": query.New(""),
	}
	filtered := query.New("sunrise")
	filtered.Filters.CareType = "memory-care"
	filtered.Filters.Amenities = []string{"pool", "wifi"}
	queries["filtered"] = filtered

	for _, size := range []int{100, 1000, 5000} {
		snap := syntheticSnapshot(size)
		for _, mode := range []engine.TextMode{engine.TextScored, engine.TextSubstring} {
			e := engine.New(mode)
			for name, q := range queries {
				b.Run(fmt.Sprintf("%s/%s/cities_%d", mode, name, size), func(b *testing.B) {
					b.ReportAllocs()
					for b.Loop() {
						e.Search(context.Background(), snap, q)
					}
				})
			}
		}
	}
}

func BenchmarkSuggest(b *testing.B) {
	snap := syntheticSnapshot(5000)
	e := engine.New(engine.TextScored)
	b.ReportAllocs()
	for b.Loop() {
		e.Suggest(snap, "sa", engine.DefaultSuggestions)
	}
}

// BenchmarkRank isolates the stable comparator sort.
func BenchmarkRank(b *testing.B) {
	snap := syntheticSnapshot(2000)
	hits := engine.New(engine.TextScored).Hits(context.Background(), snap, query.New("s"))
	b.Run(fmt.Sprintf("hits_%d", len(hits)), func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			ranker.Rank(hits)
		}
	})
}
