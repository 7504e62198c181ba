package directory

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Snapshot is an immutable, loaded record set. It is built once per load and
// shared read-only by every search and autocomplete session.
type Snapshot struct {
	cities     []City
	facilities []Facility
	bySlug     map[string]int
	version    string
	source     string
	loadedAt   time.Time
}

// Meta describes where a snapshot came from.
type Meta struct {
	Source   string
	LoadedAt time.Time
}

// NewSnapshot normalises raw records into a Snapshot. It never fails on a
// single malformed record: missing numerics default to 0, missing sets to
// empty, duplicate slugs and ids keep the first occurrence.
func NewSnapshot(cities []City, facilities []Facility, meta Meta) *Snapshot {
	logger := slog.Default().With("component", "record-store", "source", meta.Source)
	s := &Snapshot{
		cities:     make([]City, 0, len(cities)),
		facilities: make([]Facility, 0, len(facilities)),
		bySlug:     make(map[string]int, len(cities)),
		source:     meta.Source,
		loadedAt:   meta.LoadedAt,
	}
	if s.loadedAt.IsZero() {
		s.loadedAt = time.Now().UTC()
	}

	for _, c := range cities {
		c = normalizeCity(c)
		if c.Slug == "" {
			logger.Warn("skipping city without name or slug")
			continue
		}
		if _, dup := s.bySlug[c.Slug]; dup {
			logger.Warn("duplicate city slug, keeping first", "slug", c.Slug)
			continue
		}
		s.bySlug[c.Slug] = len(s.cities)
		s.cities = append(s.cities, c)
	}

	seenIDs := make(map[string]struct{}, len(facilities))
	perCity := make(map[string]int, len(s.cities))
	dangling := 0
	for i, f := range facilities {
		f = normalizeFacility(f, i)
		if _, dup := seenIDs[f.ID]; dup {
			logger.Warn("duplicate facility id, keeping first", "id", f.ID)
			continue
		}
		seenIDs[f.ID] = struct{}{}
		if f.CitySlug != "" {
			if _, ok := s.bySlug[f.CitySlug]; !ok {
				dangling++
				logger.Debug("facility references unknown city", "id", f.ID, "city_slug", f.CitySlug)
			}
			perCity[f.CitySlug]++
		}
		s.facilities = append(s.facilities, f)
	}
	if dangling > 0 {
		logger.Warn("facilities reference unknown cities", "count", dangling)
	}

	for i := range s.cities {
		if s.cities[i].FacilityCount == 0 {
			s.cities[i].FacilityCount = perCity[s.cities[i].Slug]
		}
	}
	s.version = fingerprint(s.cities, s.facilities)
	return s
}

// Cities returns the city records in feed order. Callers must not modify
// the returned slice.
func (s *Snapshot) Cities() []City { return s.cities }

// Facilities returns the facility records in feed order. Callers must not
// modify the returned slice.
func (s *Snapshot) Facilities() []Facility { return s.facilities }

// CityBySlug looks up a city by its slug.
func (s *Snapshot) CityBySlug(slug string) (City, bool) {
	i, ok := s.bySlug[slug]
	if !ok {
		return City{}, false
	}
	return s.cities[i], true
}

// Version is a content fingerprint; two snapshots with identical records
// share a version.
func (s *Snapshot) Version() string { return s.version }

// Source names the feed source the snapshot was loaded from.
func (s *Snapshot) Source() string { return s.source }

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

func normalizeCity(c City) City {
	c.Name = strings.TrimSpace(c.Name)
	c.State = StateName(c.State)
	if c.StateAbbr == "" {
		c.StateAbbr = StateAbbreviation(c.State)
	}
	if !ValidStateCode(c.StateAbbr) {
		c.StateAbbr = ""
	} else {
		c.StateAbbr = strings.ToUpper(c.StateAbbr)
	}
	if c.Slug == "" && c.Name != "" {
		c.Slug = Slugify(c.Name + " " + c.StateAbbr)
	}
	c.Population = nonNegative(c.Population)
	c.AssistedLivingCost = nonNegative(c.AssistedLivingCost)
	c.MemoryCareCost = nonNegative(c.MemoryCareCost)
	c.FacilityCount = nonNegative(c.FacilityCount)
	c.SearchTokens = lowerAll(c.SearchTokens)
	if c.URL == "" && c.Slug != "" {
		c.URL = CityURL(c.Slug)
	}
	return c
}

func normalizeFacility(f Facility, index int) Facility {
	f.Name = strings.TrimSpace(f.Name)
	if f.ID == "" {
		f.ID = fmt.Sprintf("%s-%d", f.CitySlug, index)
	}
	if f.CareTypes == nil {
		f.CareTypes = []string{}
	}
	if f.Amenities == nil {
		f.Amenities = []string{}
	}
	f.MonthlyAvg = nonNegative(f.MonthlyAvg)
	if f.Rating < 0 {
		f.Rating = 0
	}
	if f.URL == "" {
		f.URL = FacilityURL(f.CitySlug, f.ID)
	}
	return f
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify produces a URL-safe identifier from free text.
func Slugify(s string) string {
	s = slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func fingerprint(cities []City, facilities []Facility) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(cities)
	_ = enc.Encode(facilities)
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
