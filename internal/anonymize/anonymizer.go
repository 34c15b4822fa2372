package anonymize

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/qivr/analytics-etl/internal/domain"
)

// MinK is the smallest k-anonymity threshold accepted; K=1 would publish individuals.
const MinK = 2

var ErrInvalidK = errors.New("k-anonymity threshold must be at least 2")

// Stats counts what a transform changed or withheld.
type Stats struct {
	// Defaulted is the number of fields replaced by an explicit default.
	Defaulted int
	// Dropped is the number of input rows discarded.
	Dropped int
	// SuppressedGroups is the number of quasi-identifier groups below K.
	SuppressedGroups int
}

// Anonymizer turns raw store rows into publishable records. It is stateless
// apart from its configuration and safe for concurrent use.
type Anonymizer struct {
	pseudo *Pseudonymizer
	scheme BracketScheme
	k      int
}

func New(pseudo *Pseudonymizer, scheme BracketScheme, k int) (*Anonymizer, error) {
	if pseudo == nil {
		return nil, ErrEmptySalt
	}
	if k < MinK {
		return nil, ErrInvalidK
	}
	if len(scheme.Brackets) == 0 {
		scheme = StandardScheme
	}
	return &Anonymizer{pseudo: pseudo, scheme: scheme, k: k}, nil
}

func (a *Anonymizer) K() int { return a.k }

func (a *Anonymizer) Tenants(rows []domain.TenantRow) ([]domain.TenantRecord, Stats) {
	var st Stats
	out := make([]domain.TenantRecord, 0, len(rows))
	for _, r := range rows {
		status := domain.TenantStatusUnknown
		if r.Status != nil {
			status = domain.ParseTenantStatus(*r.Status)
		}
		plan := domain.PlanTierUnknown
		if r.Plan != nil {
			plan = domain.ParsePlanTier(*r.Plan)
		}
		region := Region(r.Timezone)
		for _, v := range []string{string(status), string(plan), region} {
			if v == domain.Unknown {
				st.Defaulted++
			}
		}

		out = append(out, domain.TenantRecord{
			ID:             r.ID.String(),
			Name:           r.Name,
			Slug:           r.Slug,
			Status:         string(status),
			PlanTier:       string(plan),
			Region:         region,
			CreatedAt:      r.CreatedAt.UTC(),
			PatientCount:   nonNegative(r.PatientCount, &st),
			StaffCount:     nonNegative(r.StaffCount, &st),
			DerivedRevenue: plan.MonthlyRevenue(),
		})
	}
	slices.SortFunc(out, func(x, y domain.TenantRecord) int {
		return cmp.Compare(x.ID, y.ID)
	})
	return out, st
}

// Usage keeps one record per tenant-day inside the window.
func (a *Anonymizer) Usage(rows []domain.UsageRow, w domain.Window) ([]domain.UsageRecord, Stats) {
	var st Stats
	out := make([]domain.UsageRecord, 0, len(rows))
	for _, r := range rows {
		if !w.Contains(r.Date) {
			st.Dropped++
			continue
		}
		out = append(out, domain.UsageRecord{
			TenantID:                  r.TenantID.String(),
			Date:                      domain.NewDate(r.Date),
			AppointmentCount:          nonNegative(r.Appointments, &st),
			CompletedAppointmentCount: nonNegative(r.CompletedAppointments, &st),
			MessageCount:              nonNegative(r.Messages, &st),
			DocumentCount:             nonNegative(r.Documents, &st),
		})
	}
	slices.SortFunc(out, func(x, y domain.UsageRecord) int {
		return cmp.Or(cmp.Compare(x.TenantID, y.TenantID), cmp.Compare(x.Date, y.Date))
	})
	return out, st
}

// Individual generalises one observation. Age is taken at discharge when known,
// otherwise at asOf.
func (a *Anonymizer) Individual(o domain.OutcomeObservation, asOf time.Time) (domain.AnonymizedIndividualRecord, int) {
	defaulted := 0
	str := func(v string) string {
		if v == domain.Unknown {
			defaulted++
		}
		return v
	}

	ageAt := asOf
	if o.DischargedAt != nil {
		ageAt = *o.DischargedAt
	}

	rec := domain.AnonymizedIndividualRecord{
		PseudoPatientID:    a.pseudo.Pseudonymize(o.PatientID.String()),
		PseudoTenantID:     a.pseudo.Pseudonymize(o.TenantID.String()),
		AgeBracket:         str(a.scheme.LabelFor(o.BirthDate, ageAt)),
		Gender:             str(Gender(o.Gender)),
		Region:             str(Region(o.State, o.Postcode, o.Timezone)),
		ConditionCategory:  str(Category(o.ConditionCategory)),
		TreatmentType:      str(Category(o.TreatmentType)),
		OutcomeType:        str(Category(o.OutcomeType)),
		BaselineScore:      o.BaselineScore,
		FinalScore:         o.FinalScore,
		ImprovementPct:     ImprovementPct(o.BaselineScore, o.FinalScore),
		DischargeYearMonth: domain.Unknown,
	}

	if o.SessionCount != nil && *o.SessionCount >= 0 {
		rec.SessionCount = *o.SessionCount
	} else {
		defaulted++
	}
	if o.DischargedAt != nil {
		rec.DischargeYearMonth = o.DischargedAt.UTC().Format("2006-01")
		if o.StartedAt != nil && !o.DischargedAt.Before(*o.StartedAt) {
			days := int64(o.DischargedAt.Sub(*o.StartedAt) / (24 * time.Hour))
			rec.DaysToDischarge = &days
		}
	} else {
		defaulted++
	}
	return rec, defaulted
}

// Individuals generalises observations and withholds every record whose
// quasi-identifier group has fewer than K distinct patients.
func (a *Anonymizer) Individuals(obs []domain.OutcomeObservation, asOf time.Time) ([]domain.AnonymizedIndividualRecord, Stats) {
	recs, st := a.generalize(obs, asOf)
	groups := groupRecords(recs)

	passing := make(map[domain.GroupKey]bool, len(groups))
	for key, g := range groups {
		if len(g.patients) < a.k {
			st.SuppressedGroups++
			st.Dropped += len(g.records)
			continue
		}
		passing[key] = true
	}

	out := make([]domain.AnonymizedIndividualRecord, 0, len(recs))
	for _, r := range recs {
		if passing[r.GroupKey()] {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, compareIndividuals)
	return out, st
}

// Aggregates groups observations by (region, outcome type, age bracket, gender)
// and emits only groups of at least K distinct patients. Smaller groups are
// dropped entirely; their existence is never reported.
func (a *Anonymizer) Aggregates(obs []domain.OutcomeObservation, asOf time.Time) ([]domain.OutcomeAggregate, Stats) {
	recs, st := a.generalize(obs, asOf)
	groups := groupRecords(recs)

	out := make([]domain.OutcomeAggregate, 0, len(groups))
	for key, g := range groups {
		if len(g.patients) < a.k {
			st.SuppressedGroups++
			continue
		}
		baseline := mean(g.records, func(r domain.AnonymizedIndividualRecord) *float64 { return r.BaselineScore })
		final := mean(g.records, func(r domain.AnonymizedIndividualRecord) *float64 { return r.FinalScore })
		out = append(out, domain.OutcomeAggregate{
			Region:            key.Region,
			OutcomeType:       key.OutcomeType,
			AgeBracket:        key.AgeBracket,
			Gender:            key.Gender,
			MeanBaselineScore: baseline,
			MeanFinalScore:    final,
			ImprovementPct:    ImprovementPct(baseline, final),
			GroupSize:         int64(len(g.patients)),
		})
	}
	slices.SortFunc(out, func(x, y domain.OutcomeAggregate) int {
		return cmp.Or(
			cmp.Compare(x.Region, y.Region),
			cmp.Compare(x.OutcomeType, y.OutcomeType),
			cmp.Compare(x.AgeBracket, y.AgeBracket),
			cmp.Compare(x.Gender, y.Gender),
		)
	})
	return out, st
}

func (a *Anonymizer) generalize(obs []domain.OutcomeObservation, asOf time.Time) ([]domain.AnonymizedIndividualRecord, Stats) {
	var st Stats
	recs := make([]domain.AnonymizedIndividualRecord, 0, len(obs))
	for _, o := range obs {
		rec, defaulted := a.Individual(o, asOf)
		st.Defaulted += defaulted
		recs = append(recs, rec)
	}
	return recs, st
}

type group struct {
	patients map[string]struct{}
	records  []domain.AnonymizedIndividualRecord
}

func groupRecords(recs []domain.AnonymizedIndividualRecord) map[domain.GroupKey]*group {
	groups := make(map[domain.GroupKey]*group)
	for _, r := range recs {
		key := r.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &group{patients: make(map[string]struct{})}
			groups[key] = g
		}
		g.patients[r.PseudoPatientID] = struct{}{}
		g.records = append(g.records, r)
	}
	return groups
}

// mean averages the non-nil values, rounded to two decimals; nil when there are none.
func mean(recs []domain.AnonymizedIndividualRecord, field func(domain.AnonymizedIndividualRecord) *float64) *float64 {
	var sum float64
	var n int
	for _, r := range recs {
		if v := field(r); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := round(sum/float64(n), 2)
	return &m
}

// compareIndividuals is a total order over every published field.
func compareIndividuals(x, y domain.AnonymizedIndividualRecord) int {
	return cmp.Or(
		cmp.Compare(x.PseudoPatientID, y.PseudoPatientID),
		cmp.Compare(x.OutcomeType, y.OutcomeType),
		cmp.Compare(x.DischargeYearMonth, y.DischargeYearMonth),
		cmp.Compare(x.PseudoTenantID, y.PseudoTenantID),
		cmp.Compare(x.ConditionCategory, y.ConditionCategory),
		cmp.Compare(x.TreatmentType, y.TreatmentType),
		cmp.Compare(x.AgeBracket, y.AgeBracket),
		cmp.Compare(x.Region, y.Region),
		cmp.Compare(x.Gender, y.Gender),
		compareOptional(x.DaysToDischarge, y.DaysToDischarge),
		compareOptional(x.BaselineScore, y.BaselineScore),
		compareOptional(x.FinalScore, y.FinalScore),
		compareOptional(x.ImprovementPct, y.ImprovementPct),
		cmp.Compare(x.SessionCount, y.SessionCount),
	)
}

// compareOptional orders nil before any value.
func compareOptional[T cmp.Ordered](x, y *T) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	return cmp.Compare(*x, *y)
}

func nonNegative(v int64, st *Stats) int64 {
	if v < 0 {
		st.Defaulted++
		return 0
	}
	return v
}
