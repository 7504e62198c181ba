// Package scorer computes additive relevance scores for directory records
// against a normalised free-text query. A score of 0 means "no match".
package scorer

import (
	"strings"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

const (
	WeightExactName    = 100
	WeightNamePrefix   = 50
	WeightNameContains = 25
	WeightStateName    = 15
	WeightStateAbbr    = 10
	WeightTokenExact   = 30
	WeightTokenPrefix  = 20
	WeightTokenContain = 10
	WeightWordExact    = 40
	WeightWordPrefix   = 30
	WeightFuzzy        = 5
	BoostPopulation    = 5
	BoostFacilityCount = 3

	MaxFuzzyDistance     = 2
	MinFuzzyQueryLength  = 4
	PopulationBoostAbove = 1_000_000
	FacilityBoostAbove   = 50
)

// Subject is the scoreable view of a record. Name, StateName, StateAbbr and
// Tokens are expected in normalised form.
type Subject struct {
	Name          string
	StateName     string
	StateAbbr     string
	Tokens        []string
	IsCity        bool
	Population    int
	FacilityCount int
}

// CitySubject builds the scoreable view of a City.
func CitySubject(c directory.City) Subject {
	return Subject{
		Name:          textmatch.Normalize(c.Name),
		StateName:     textmatch.Normalize(c.State),
		StateAbbr:     strings.ToLower(c.StateAbbr),
		Tokens:        c.SearchTokens,
		IsCity:        true,
		Population:    c.Population,
		FacilityCount: c.FacilityCount,
	}
}

// FacilitySubject builds the scoreable view of a Facility.
func FacilitySubject(f directory.Facility) Subject {
	return Subject{
		Name:      textmatch.Normalize(f.Name),
		StateName: textmatch.Normalize(f.StateFullName()),
		StateAbbr: strings.ToLower(f.StateCode()),
	}
}

// Score returns the additive relevance of s for the normalised term. Every
// signal that fires contributes its weight; the fuzzy signal is consulted
// only when nothing else matched.
func Score(s Subject, term string) int {
	if term == "" {
		return 0
	}
	score := 0

	switch {
	case s.Name == term:
		score += WeightExactName
	case strings.HasPrefix(s.Name, term):
		score += WeightNamePrefix
	case strings.Contains(s.Name, term):
		score += WeightNameContains
	}

	if s.StateName != "" && strings.Contains(s.StateName, term) {
		score += WeightStateName
	}
	if s.StateAbbr != "" && s.StateAbbr == term {
		score += WeightStateAbbr
	}

	for _, token := range s.Tokens {
		switch {
		case token == term:
			score += WeightTokenExact
		case strings.HasPrefix(token, term):
			score += WeightTokenPrefix
		case strings.Contains(token, term):
			score += WeightTokenContain
		}
	}

	score += wordScore(s.Name, term)

	if score == 0 {
		if textmatch.Len(term) >= MinFuzzyQueryLength && textmatch.Distance(term, s.Name) <= MaxFuzzyDistance {
			score += WeightFuzzy
		}
	}

	if score > 0 && s.IsCity {
		if s.Population > PopulationBoostAbove {
			score += BoostPopulation
		}
		if s.FacilityCount > FacilityBoostAbove {
			score += BoostFacilityCount
		}
	}
	return score
}

// wordScore awards the word-boundary signal once: an exact word beats a
// word prefix.
func wordScore(name, term string) int {
	best := 0
	for _, word := range strings.Fields(name) {
		if word == term {
			return WeightWordExact
		}
		if strings.HasPrefix(word, term) {
			best = WeightWordPrefix
		}
	}
	return best
}

// City scores a City record.
func City(c directory.City, term string) int {
	return Score(CitySubject(c), term)
}

// Facility scores a Facility record.
func Facility(f directory.Facility, term string) int {
	return Score(FacilitySubject(f), term)
}
