package directory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var stateAbbrs = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
	"district of columbia": "DC",
	"puerto rico":          "PR",
}

var stateNames = func() map[string]string {
	title := cases.Title(language.AmericanEnglish)
	m := make(map[string]string, len(stateAbbrs))
	for name, abbr := range stateAbbrs {
		m[abbr] = title.String(name)
	}
	m["DC"] = "District of Columbia"
	return m
}()

// ValidStateCode reports whether code is a USPS state or territory code.
func ValidStateCode(code string) bool {
	_, ok := stateNames[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// StateAbbreviation maps a full state name to its USPS code. A value that is
// already a valid code is returned upper-cased; anything else yields "".
func StateAbbreviation(state string) string {
	s := strings.TrimSpace(state)
	if abbr, ok := stateAbbrs[strings.ToLower(s)]; ok {
		return abbr
	}
	if ValidStateCode(s) {
		return strings.ToUpper(s)
	}
	return ""
}

// StateName maps a USPS code to the full state name. Full names pass through
// unchanged.
func StateName(state string) string {
	s := strings.TrimSpace(state)
	if len(s) == 2 {
		if name, ok := stateNames[strings.ToUpper(s)]; ok {
			return name
		}
	}
	return s
}
