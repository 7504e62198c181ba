// Package directory holds the record store for the senior-living directory:
// City and Facility records and the immutable Snapshot that search runs over.
package directory

import (
	"fmt"
	"math"
)

// LatLng is a coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lng float64 `json:"lng" msgpack:"lng"`
}

// City is a directory city page.
type City struct {
	Name               string   `json:"name"`
	State              string   `json:"state"`
	StateAbbr          string   `json:"state_abbr"`
	Slug               string   `json:"slug"`
	Population         int      `json:"population"`
	Coordinates        *LatLng  `json:"coordinates,omitempty"`
	AssistedLivingCost int      `json:"assisted_living_cost"`
	MemoryCareCost     int      `json:"memory_care_cost"`
	FacilityCount      int      `json:"facility_count"`
	SearchTokens       []string `json:"search_tokens,omitempty"`
	URL                string   `json:"url"`
}

// Facility is a single senior-living facility listed under a city.
type Facility struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	CitySlug    string   `json:"city_slug"`
	Address     string   `json:"address"`
	Coordinates *LatLng  `json:"coordinates,omitempty"`
	Rating      float64  `json:"rating"`
	CareTypes   []string `json:"care_types"`
	Amenities   []string `json:"amenities"`
	MonthlyAvg  int      `json:"monthly_avg"`
	URL         string   `json:"url"`
}

// Stars returns the display star count: the rating clamped to [0,5] and
// rounded to the nearest whole star.
func (f Facility) Stars() int {
	r := math.Max(0, math.Min(5, f.Rating))
	return int(math.Round(r))
}

// StateCode returns the two-letter code for the facility's state, which the
// feed may carry either as a full name or already abbreviated.
func (f Facility) StateCode() string {
	return StateAbbreviation(f.State)
}

// StateFullName returns the full state name for the facility.
func (f Facility) StateFullName() string {
	return StateName(f.State)
}

// CityURL is the canonical page URL for a city slug.
func CityURL(slug string) string {
	return fmt.Sprintf("/city/%s/", slug)
}

// FacilityURL is the canonical anchor URL for a facility on its city page.
func FacilityURL(citySlug, id string) string {
	if citySlug == "" {
		return ""
	}
	return fmt.Sprintf("/city/%s/#%s", citySlug, id)
}
