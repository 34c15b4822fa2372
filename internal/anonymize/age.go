package anonymize

import (
	"fmt"
	"time"

	"github.com/qivr/analytics-etl/internal/domain"
)

// maxPlausibleAge guards against sentinel birth dates such as 1900-01-01.
const maxPlausibleAge = 120

// Bracket covers ages from Min (inclusive) up to the next bracket's Min (exclusive).
type Bracket struct {
	Label string
	Min   int
}

// BracketScheme is an ordered, gap-free set of age brackets.
type BracketScheme struct {
	Name     string
	Brackets []Bracket
}

// StandardScheme is the canonical scheme, with a 0-17 floor bracket.
var StandardScheme = BracketScheme{
	Name: "standard",
	Brackets: []Bracket{
		{Label: "0-17", Min: 0},
		{Label: "18-24", Min: 18},
		{Label: "25-34", Min: 25},
		{Label: "35-44", Min: 35},
		{Label: "45-54", Min: 45},
		{Label: "55-64", Min: 55},
		{Label: "65+", Min: 65},
	},
}

// AdultScheme has no floor bracket: every age below 35 reports as 18-34.
var AdultScheme = BracketScheme{
	Name: "adult",
	Brackets: []Bracket{
		{Label: "18-34", Min: 0},
		{Label: "35-49", Min: 35},
		{Label: "50-64", Min: 50},
		{Label: "65+", Min: 65},
	},
}

func LookupScheme(name string) (BracketScheme, error) {
	switch name {
	case "", StandardScheme.Name:
		return StandardScheme, nil
	case AdultScheme.Name:
		return AdultScheme, nil
	}
	return BracketScheme{}, fmt.Errorf("unknown age bracket scheme %q", name)
}

// Label returns the bracket containing age, or unknown for negative ages.
func (s BracketScheme) Label(age int) string {
	if age < 0 || age > maxPlausibleAge {
		return domain.Unknown
	}
	for i := len(s.Brackets) - 1; i >= 0; i-- {
		if age >= s.Brackets[i].Min {
			return s.Brackets[i].Label
		}
	}
	return domain.Unknown
}

// LabelFor brackets the age at asOf of someone born on birth.
func (s BracketScheme) LabelFor(birth *time.Time, asOf time.Time) string {
	if birth == nil || birth.IsZero() || birth.After(asOf) {
		return domain.Unknown
	}
	return s.Label(AgeAt(*birth, asOf))
}

// AgeAt returns completed years between birth and asOf, compared on UTC calendar dates.
func AgeAt(birth, asOf time.Time) int {
	by, bm, bd := birth.UTC().Date()
	ay, am, ad := asOf.UTC().Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age
}
