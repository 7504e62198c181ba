package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/seniorliving/directory-search/internal/directory"
)

// ErrEmptyFeed is returned when a document decodes but carries no records.
var ErrEmptyFeed = errors.New("feed contains no records")

type rawLatLng struct {
	Lat       *flexNumber `json:"lat"`
	Lng       *flexNumber `json:"lng"`
	Lon       *flexNumber `json:"lon"`
	Latitude  *flexNumber `json:"latitude"`
	Longitude *flexNumber `json:"longitude"`
}

func (r *rawLatLng) toLatLng() *directory.LatLng {
	if r == nil {
		return nil
	}
	lat := firstNumber(r.Lat, r.Latitude)
	lng := firstNumber(r.Lng, r.Lon, r.Longitude)
	if lat == nil || lng == nil {
		return nil
	}
	return &directory.LatLng{Lat: lat.Float(), Lng: lng.Float()}
}

func firstNumber(ns ...*flexNumber) *flexNumber {
	for _, n := range ns {
		if n != nil {
			return n
		}
	}
	return nil
}

type rawCost struct {
	MonthlyAvg flexNumber `json:"monthly_avg"`
}

type rawCityInfo struct {
	Name        string      `json:"name"`
	State       string      `json:"state"`
	StateAbbr   string      `json:"state_abbr"`
	Population  flexNumber  `json:"population"`
	Coordinates *rawLatLng  `json:"coordinates"`
	Lat         *flexNumber `json:"lat"`
	Lng         *flexNumber `json:"lng"`
}

// rawCity covers both the flat index record and the nested combined entry.
type rawCity struct {
	rawCityInfo
	Slug               string        `json:"slug"`
	AssistedLivingCost flexNumber    `json:"assisted_living_cost"`
	MemoryCareCost     flexNumber    `json:"memory_care_cost"`
	FacilityCount      flexNumber    `json:"facility_count"`
	SearchTokens       flexStrings   `json:"search_tokens"`
	URL                string        `json:"url"`
	CityInfo           *rawCityInfo  `json:"city_info"`
	Costs              *struct {
		AssistedLiving rawCost `json:"assisted_living"`
		MemoryCare     rawCost `json:"memory_care"`
	} `json:"costs"`
	Meta *struct {
		FacilityCount flexNumber `json:"facility_count"`
	} `json:"meta"`
	Facilities []rawFacility `json:"facilities"`
}

type rawFacility struct {
	ID          flexString  `json:"id"`
	Name        string      `json:"name"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	CitySlug    string      `json:"city_slug"`
	Address     string      `json:"address"`
	URL         string      `json:"url"`
	Coordinates *rawLatLng  `json:"coordinates"`
	Lat         *flexNumber `json:"lat"`
	Lng         *flexNumber `json:"lng"`
	Rating      flexNumber  `json:"rating"`
	Ratings     *struct {
		Overall flexNumber `json:"overall"`
	} `json:"ratings"`
	CareTypes    flexStrings `json:"care_types"`
	FacilityType flexStrings `json:"facility_type"`
	Amenities    flexStrings `json:"amenities"`
	Features     flexStrings `json:"features"`
	MonthlyAvg   flexNumber  `json:"monthly_avg"`
	Costs        *rawCost    `json:"costs"`
}

// Records is a decoded, not yet normalised, feed.
type Records struct {
	Cities     []directory.City
	Facilities []directory.Facility
}

// Decode reads any of the accepted feed shapes:
//
//	{"cities": [...], "facilities": [...]}
//	{"cities": {"<slug>": {...}}, "facilities": [...]}
//	{"<slug>": {"city_info": {...}, "costs": {...}, "meta": {...}, "facilities": [...]}}
//	[{...city...}, ...]
//
// City entries in either container may be flat or nested under city_info.
// Mapping order is preserved.
func Decode(data []byte) (Records, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Records{}, ErrEmptyFeed
	}

	var recs Records
	switch data[0] {
	case '[':
		var cities []rawCity
		if err := json.Unmarshal(data, &cities); err != nil {
			return Records{}, fmt.Errorf("decoding city array: %w", err)
		}
		for _, rc := range cities {
			recs.addCity("", rc)
		}
	case '{':
		if err := recs.decodeObject(data); err != nil {
			return Records{}, err
		}
	default:
		return Records{}, fmt.Errorf("decoding feed: unexpected leading byte %q", data[0])
	}

	if len(recs.Cities) == 0 && len(recs.Facilities) == 0 {
		return Records{}, ErrEmptyFeed
	}
	return recs, nil
}

func (r *Records) decodeObject(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("decoding feed: %w", err)
	}

	cities, hasCities := top["cities"]
	_, hasFacilities := top["facilities"]
	if !hasCities && !hasFacilities {
		// Bare slug mapping: the combined document.
		return r.decodeCityMap(data)
	}

	cities = bytes.TrimSpace(cities)
	switch {
	case len(cities) == 0 || bytes.Equal(cities, []byte("null")):
	case cities[0] == '[':
		var list []rawCity
		if err := json.Unmarshal(cities, &list); err != nil {
			return fmt.Errorf("decoding cities: %w", err)
		}
		for _, rc := range list {
			r.addCity("", rc)
		}
	case cities[0] == '{':
		if err := r.decodeCityMap(cities); err != nil {
			return err
		}
	default:
		return fmt.Errorf("decoding cities: expected array or object")
	}

	if raw, ok := top["facilities"]; ok {
		var list []rawFacility
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decoding facilities: %w", err)
		}
		for _, rf := range list {
			r.Facilities = append(r.Facilities, rf.toFacility(directory.City{}))
		}
	}
	return nil
}

// decodeCityMap walks a slug-keyed object token by token so the feed's key
// order becomes store order.
func (r *Records) decodeCityMap(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding city map: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding city map: %w", err)
		}
		slug, _ := tok.(string)
		var rc rawCity
		if err := dec.Decode(&rc); err != nil {
			return fmt.Errorf("decoding city %q: %w", slug, err)
		}
		r.addCity(slug, rc)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return fmt.Errorf("decoding city map: %w", err)
	}
	return nil
}

func (r *Records) addCity(key string, rc rawCity) {
	c := rc.toCity(key)
	r.Cities = append(r.Cities, c)
	for _, rf := range rc.Facilities {
		r.Facilities = append(r.Facilities, rf.toFacility(c))
	}
}

func (rc rawCity) toCity(key string) directory.City {
	info := rc.rawCityInfo
	if rc.CityInfo != nil {
		info = mergeInfo(info, *rc.CityInfo)
	}

	c := directory.City{
		Name:               info.Name,
		State:              info.State,
		StateAbbr:          info.StateAbbr,
		Slug:               rc.Slug,
		Population:         info.Population.Int(),
		Coordinates:        coordinates(info.Coordinates, info.Lat, info.Lng),
		AssistedLivingCost: rc.AssistedLivingCost.Int(),
		MemoryCareCost:     rc.MemoryCareCost.Int(),
		FacilityCount:      rc.FacilityCount.Int(),
		SearchTokens:       rc.SearchTokens,
		URL:                rc.URL,
	}
	if c.Slug == "" {
		c.Slug = key
	}
	if rc.Costs != nil {
		if c.AssistedLivingCost == 0 {
			c.AssistedLivingCost = rc.Costs.AssistedLiving.MonthlyAvg.Int()
		}
		if c.MemoryCareCost == 0 {
			c.MemoryCareCost = rc.Costs.MemoryCare.MonthlyAvg.Int()
		}
	}
	if rc.Meta != nil && c.FacilityCount == 0 {
		c.FacilityCount = rc.Meta.FacilityCount.Int()
	}
	return c
}

// mergeInfo fills blanks in flat with values from nested.
func mergeInfo(flat, nested rawCityInfo) rawCityInfo {
	if flat.Name == "" {
		flat.Name = nested.Name
	}
	if flat.State == "" {
		flat.State = nested.State
	}
	if flat.StateAbbr == "" {
		flat.StateAbbr = nested.StateAbbr
	}
	if flat.Population == 0 {
		flat.Population = nested.Population
	}
	if flat.Coordinates == nil {
		flat.Coordinates = nested.Coordinates
	}
	if flat.Lat == nil {
		flat.Lat = nested.Lat
	}
	if flat.Lng == nil {
		flat.Lng = nested.Lng
	}
	return flat
}

func coordinates(nested *rawLatLng, lat, lng *flexNumber) *directory.LatLng {
	if ll := nested.toLatLng(); ll != nil {
		return ll
	}
	if lat != nil && lng != nil {
		return &directory.LatLng{Lat: lat.Float(), Lng: lng.Float()}
	}
	return nil
}

// toFacility converts rf, inheriting location fields from parent when the
// facility was nested under a city entry.
func (rf rawFacility) toFacility(parent directory.City) directory.Facility {
	f := directory.Facility{
		ID:          string(rf.ID),
		Name:        rf.Name,
		City:        rf.City,
		State:       rf.State,
		CitySlug:    rf.CitySlug,
		Address:     rf.Address,
		Coordinates: coordinates(rf.Coordinates, rf.Lat, rf.Lng),
		Rating:      rf.Rating.Float(),
		CareTypes:   rf.CareTypes,
		Amenities:   rf.Amenities,
		MonthlyAvg:  rf.MonthlyAvg.Int(),
		URL:         rf.URL,
	}
	if f.Rating == 0 && rf.Ratings != nil {
		f.Rating = rf.Ratings.Overall.Float()
	}
	if len(f.CareTypes) == 0 {
		f.CareTypes = rf.FacilityType
	}
	if len(f.Amenities) == 0 {
		f.Amenities = rf.Features
	}
	if f.MonthlyAvg == 0 && rf.Costs != nil {
		f.MonthlyAvg = rf.Costs.MonthlyAvg.Int()
	}
	if f.CitySlug == "" {
		f.CitySlug = parent.Slug
	}
	if f.City == "" {
		f.City = parent.Name
	}
	if f.State == "" {
		f.State = parent.State
	}
	return f
}
