package ranker

import (
	"encoding/json"
	"fmt"

	"github.com/seniorliving/directory-search/internal/directory"
)

// Kind discriminates the Result union.
type Kind string

const (
	KindCity     Kind = "city"
	KindFacility Kind = "facility"
)

// Result is a rendered search hit: exactly one of City or Facility is set.
// It serialises flat, with a "type" discriminator.
type Result struct {
	Type     Kind            `msgpack:"type"`
	City     *CityResult     `msgpack:"city,omitempty"`
	Facility *FacilityResult `msgpack:"facility,omitempty"`
}

// CityResult carries the fields needed to render a city hit.
type CityResult struct {
	Name               string `json:"name" msgpack:"name"`
	State              string `json:"state" msgpack:"state"`
	StateAbbr          string `json:"state_abbr" msgpack:"state_abbr"`
	Slug               string `json:"slug" msgpack:"slug"`
	URL                string `json:"url" msgpack:"url"`
	Population         int    `json:"population" msgpack:"population"`
	AssistedLivingCost int    `json:"assisted_living_cost" msgpack:"assisted_living_cost"`
	MemoryCareCost     int    `json:"memory_care_cost" msgpack:"memory_care_cost"`
	FacilityCount      int    `json:"facility_count" msgpack:"facility_count"`
}

// FacilityResult carries the fields needed to render a facility hit.
type FacilityResult struct {
	ID         string   `json:"id" msgpack:"id"`
	Name       string   `json:"name" msgpack:"name"`
	City       string   `json:"city" msgpack:"city"`
	State      string   `json:"state" msgpack:"state"`
	CitySlug   string   `json:"city_slug" msgpack:"city_slug"`
	Address    string   `json:"address" msgpack:"address"`
	URL        string   `json:"url" msgpack:"url"`
	Rating     float64  `json:"rating" msgpack:"rating"`
	Stars      int      `json:"stars" msgpack:"stars"`
	CareTypes  []string `json:"care_types" msgpack:"care_types"`
	Amenities  []string `json:"amenities" msgpack:"amenities"`
	MonthlyAvg int      `json:"monthly_avg" msgpack:"monthly_avg"`
}

// NewCityResult renders a city record.
func NewCityResult(c directory.City) Result {
	return Result{Type: KindCity, City: &CityResult{
		Name:               c.Name,
		State:              c.State,
		StateAbbr:          c.StateAbbr,
		Slug:               c.Slug,
		URL:                c.URL,
		Population:         c.Population,
		AssistedLivingCost: c.AssistedLivingCost,
		MemoryCareCost:     c.MemoryCareCost,
		FacilityCount:      c.FacilityCount,
	}}
}

// NewFacilityResult renders a facility record.
func NewFacilityResult(f directory.Facility) Result {
	return Result{Type: KindFacility, Facility: &FacilityResult{
		ID:         f.ID,
		Name:       f.Name,
		City:       f.City,
		State:      f.State,
		CitySlug:   f.CitySlug,
		Address:    f.Address,
		URL:        f.URL,
		Rating:     f.Rating,
		Stars:      f.Stars(),
		CareTypes:  f.CareTypes,
		Amenities:  f.Amenities,
		MonthlyAvg: f.MonthlyAvg,
	}}
}

// Name returns the display name of whichever record the result holds.
func (r Result) Name() string {
	if r.City != nil {
		return r.City.Name
	}
	if r.Facility != nil {
		return r.Facility.Name
	}
	return ""
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.City != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*CityResult
		}{KindCity, r.City})
	case r.Facility != nil:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*FacilityResult
		}{KindFacility, r.Facility})
	default:
		return nil, fmt.Errorf("ranker: empty result")
	}
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case KindCity:
		r.Type, r.Facility, r.City = KindCity, nil, &CityResult{}
		return json.Unmarshal(data, r.City)
	case KindFacility:
		r.Type, r.City, r.Facility = KindFacility, nil, &FacilityResult{}
		return json.Unmarshal(data, r.Facility)
	default:
		return fmt.Errorf("ranker: unknown result type %q", head.Type)
	}
}
