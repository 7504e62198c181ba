package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/query"
)

func intPtr(n int) *int { return &n }

func testSnapshot() *directory.Snapshot {
	cities := []directory.City{
		{Name: "Austin", State: "Texas", Slug: "austin-tx", AssistedLivingCost: 3000,
			Coordinates: &directory.LatLng{Lat: 30.2672, Lng: -97.7431}},
		{Name: "Round Rock", State: "Texas", Slug: "round-rock-tx", AssistedLivingCost: 2999,
			Coordinates: &directory.LatLng{Lat: 30.5083, Lng: -97.6789}},
		{Name: "Boise", State: "Idaho", Slug: "boise-id", AssistedLivingCost: 4000},
	}
	facilities := []directory.Facility{
		{ID: "f1", Name: "Sunrise of Austin", State: "TX", CitySlug: "austin-tx", Rating: 4.5,
			CareTypes: []string{"Assisted Living", "Memory Care"}, Amenities: []string{"Pool", "WiFi"},
			MonthlyAvg: 5000, Coordinates: &directory.LatLng{Lat: 30.27, Lng: -97.75}},
		{ID: "f2", Name: "Boise Gardens", State: "Idaho", CitySlug: "boise-id", Rating: 3.2,
			CareTypes: []string{"independent living"}, Amenities: []string{"garden"}, MonthlyAvg: 6500},
	}
	return directory.NewSnapshot(cities, facilities, directory.Meta{Source: "test"})
}

func slugs(c Candidates) []string {
	var out []string
	for _, city := range c.Cities {
		out = append(out, city.Slug)
	}
	for _, f := range c.Facilities {
		out = append(out, f.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	snap := testSnapshot()
	tests := []struct {
		name string
		q    query.Query
		opts Options
		want []string
	}{
		{"no filters", query.Query{}, Options{}, []string{"austin-tx", "round-rock-tx", "boise-id", "f1", "f2"}},
		{"text on name and state", query.Query{Term: "texas"}, Options{MatchText: true}, []string{"austin-tx", "round-rock-tx"}},
		{"text on state name", query.Query{Term: "id"}, Options{MatchText: true}, []string{"boise-id"}},
		{"text ignored when disabled", query.Query{Term: "zzz"}, Options{}, []string{"austin-tx", "round-rock-tx", "boise-id", "f1", "f2"}},
		{"state", query.Query{Filters: query.Filters{State: "tx"}}, Options{}, []string{"austin-tx", "round-rock-tx", "f1"}},
		{"bracket lower edge", query.Query{Filters: query.Filters{CostBracket: query.Cost3000To4000}}, Options{}, []string{"austin-tx", "boise-id"}},
		{"bracket shared edge", query.Query{Filters: query.Filters{CostBracket: query.Cost4000To5000}}, Options{}, []string{"boise-id", "f1"}},
		{"under 3000", query.Query{Filters: query.Filters{CostBracket: query.CostUnder3000}}, Options{}, []string{"round-rock-tx"}},
		{"care type", query.Query{Filters: query.Filters{CareType: "memory-care"}}, Options{}, []string{"f1"}},
		{"care type spaces", query.Query{Filters: query.Filters{CareType: "Independent Living"}}, Options{}, []string{"f2"}},
		{"amenities superset", query.Query{Filters: query.Filters{Amenities: []string{"pool", "wifi"}}}, Options{}, []string{"f1"}},
		{"amenities missing one", query.Query{Filters: query.Filters{Amenities: []string{"pool", "garden"}}}, Options{}, nil},
		{"rating floor", query.Query{Filters: query.Filters{RatingFloor: intPtr(4)}}, Options{}, []string{"f1"}},
		{"rating floor zero keeps facilities", query.Query{Filters: query.Filters{RatingFloor: intPtr(0)}}, Options{}, []string{"f1", "f2"}},
		{
			"radius fails closed",
			query.Query{Filters: query.Filters{Geo: &query.Geo{Lat: 30.2672, Lng: -97.7431, RadiusMiles: 25}}},
			Options{},
			[]string{"austin-tx", "round-rock-tx", "f1"},
		},
		{
			"radius tight",
			query.Query{Filters: query.Filters{Geo: &query.Geo{Lat: 30.2672, Lng: -97.7431, RadiusMiles: 5}}},
			Options{},
			[]string{"austin-tx", "f1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slugs(Apply(snap, tt.q, tt.opts)))
		})
	}
}

func TestGeoFailClosedOnPerfectTextMatch(t *testing.T) {
	boise := directory.City{Name: "Boise", State: "Idaho", StateAbbr: "ID"}
	q := query.Query{Term: "boise", Filters: query.Filters{Geo: &query.Geo{Lat: 43.6, Lng: -116.2}}}
	assert.False(t, City(boise, q, Options{MatchText: true}))
}

func TestHaversine(t *testing.T) {
	austin := directory.LatLng{Lat: 30.2672, Lng: -97.7431}
	dallas := directory.LatLng{Lat: 32.7767, Lng: -96.7970}

	d := Haversine(austin, dallas)
	assert.InDelta(t, 182, d, 3)
	assert.InDelta(t, 0, Haversine(austin, austin), 1e-9)
}
