package anonymize

import (
	"strconv"
	"strings"

	"github.com/qivr/analytics-etl/internal/domain"
)

var stateAliases = map[string]string{
	"nsw":                          "NSW",
	"new south wales":              "NSW",
	"vic":                          "VIC",
	"victoria":                     "VIC",
	"qld":                          "QLD",
	"queensland":                   "QLD",
	"sa":                           "SA",
	"south australia":              "SA",
	"wa":                           "WA",
	"western australia":            "WA",
	"tas":                          "TAS",
	"tasmania":                     "TAS",
	"nt":                           "NT",
	"northern territory":           "NT",
	"act":                          "ACT",
	"australian capital territory": "ACT",
	"nz":                           "NZ",
	"new zealand":                  "NZ",
}

var timezoneRegions = map[string]string{
	"australia/sydney":      "NSW",
	"australia/nsw":         "NSW",
	"australia/broken_hill": "NSW",
	"australia/lord_howe":   "NSW",
	"australia/canberra":    "ACT",
	"australia/act":         "ACT",
	"australia/melbourne":   "VIC",
	"australia/victoria":    "VIC",
	"australia/brisbane":    "QLD",
	"australia/queensland":  "QLD",
	"australia/lindeman":    "QLD",
	"australia/adelaide":    "SA",
	"australia/south":       "SA",
	"australia/perth":       "WA",
	"australia/west":        "WA",
	"australia/eucla":       "WA",
	"australia/hobart":      "TAS",
	"australia/tasmania":    "TAS",
	"australia/currie":      "TAS",
	"australia/darwin":      "NT",
	"australia/north":       "NT",
	"pacific/auckland":      "NZ",
	"pacific/chatham":       "NZ",
	"nz":                    "NZ",
}

// Region generalises address-level sources to a state or territory code.
// Sources are tried in order; the first that maps wins. Suburbs, cities and
// postcodes are never returned.
func Region(sources ...*string) string {
	for _, s := range sources {
		if s == nil {
			continue
		}
		if r, ok := regionOf(*s); ok {
			return r
		}
	}
	return domain.Unknown
}

func regionOf(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if r, ok := stateAliases[key]; ok {
		return r, true
	}
	if r, ok := timezoneRegions[key]; ok {
		return r, true
	}
	if len(key) >= 3 && len(key) <= 4 {
		if code, err := strconv.Atoi(key); err == nil {
			return postcodeState(code)
		}
	}
	return "", false
}

// postcodeState maps an Australian postcode to its state or territory.
func postcodeState(code int) (string, bool) {
	switch {
	case code >= 200 && code <= 299, code >= 2600 && code <= 2618, code >= 2900 && code <= 2920:
		return "ACT", true
	case code >= 800 && code <= 999:
		return "NT", true
	case code >= 1000 && code <= 2999:
		return "NSW", true
	case code >= 3000 && code <= 3999, code >= 8000 && code <= 8999:
		return "VIC", true
	case code >= 4000 && code <= 4999, code >= 9000 && code <= 9999:
		return "QLD", true
	case code >= 5000 && code <= 5999:
		return "SA", true
	case code >= 6000 && code <= 6999:
		return "WA", true
	case code >= 7000 && code <= 7999:
		return "TAS", true
	}
	return "", false
}
