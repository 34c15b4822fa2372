package anonymize

import (
	"math"
	"strings"

	"github.com/qivr/analytics-etl/internal/domain"
)

// maxCategoryLength bounds category values; anything longer is treated as free text.
const maxCategoryLength = 64

func Gender(raw *string) string {
	if raw == nil {
		return domain.Unknown
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "f", "female", "woman":
		return "F"
	case "m", "male", "man":
		return "M"
	case "x", "other", "non-binary", "nonbinary", "intersex", "indeterminate":
		return "X"
	}
	return domain.Unknown
}

// Category normalises a bounded-vocabulary label such as a condition category.
func Category(raw *string) string {
	if raw == nil {
		return domain.Unknown
	}
	s := strings.Join(strings.Fields(*raw), " ")
	if s == "" || len(s) > maxCategoryLength {
		return domain.Unknown
	}
	return s
}

// ImprovementPct is ((final-baseline)/baseline)*100 rounded to one decimal.
// It is nil when either score is missing or the baseline is zero.
func ImprovementPct(baseline, final *float64) *float64 {
	if baseline == nil || final == nil || *baseline == 0 {
		return nil
	}
	v := round((*final-*baseline) / *baseline * 100, 1)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
