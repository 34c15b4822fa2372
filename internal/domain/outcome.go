package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeObservation is one treatment episode with its baseline and final PROM
// scores. It carries raw identifiers and never leaves the process.
type OutcomeObservation struct {
	PatientID         uuid.UUID
	TenantID          uuid.UUID
	BirthDate         *time.Time
	Gender            *string
	State             *string
	Postcode          *string
	Timezone          *string
	ConditionCategory *string
	TreatmentType     *string
	OutcomeType       *string
	BaselineScore     *float64
	FinalScore        *float64
	SessionCount      *int64
	StartedAt         *time.Time
	DischargedAt      *time.Time
}

// OutcomeMode selects which outcome record shape a run publishes.
type OutcomeMode string

const (
	OutcomeModeAggregate  OutcomeMode = "aggregate"
	OutcomeModeIndividual OutcomeMode = "individual"
)

// AnonymizedIndividualRecord is a generalised, pseudonymous treatment episode.
// Missing session counts are published as 0; missing scores as null.
type AnonymizedIndividualRecord struct {
	PseudoPatientID    string   `json:"pseudo_patient_id" parquet:"pseudo_patient_id"`
	PseudoTenantID     string   `json:"pseudo_tenant_id" parquet:"pseudo_tenant_id"`
	AgeBracket         string   `json:"age_bracket" parquet:"age_bracket"`
	Gender             string   `json:"gender" parquet:"gender"`
	Region             string   `json:"region" parquet:"region"`
	ConditionCategory  string   `json:"condition_category" parquet:"condition_category"`
	TreatmentType      string   `json:"treatment_type" parquet:"treatment_type"`
	OutcomeType        string   `json:"outcome_type" parquet:"outcome_type"`
	BaselineScore      *float64 `json:"baseline_score" parquet:"baseline_score,optional"`
	FinalScore         *float64 `json:"final_score" parquet:"final_score,optional"`
	ImprovementPct     *float64 `json:"improvement_pct" parquet:"improvement_pct,optional"`
	SessionCount       int64    `json:"session_count" parquet:"session_count"`
	DaysToDischarge    *int64   `json:"days_to_discharge" parquet:"days_to_discharge,optional"`
	DischargeYearMonth string   `json:"discharge_year_month" parquet:"discharge_year_month"`
}

// GroupKey is the quasi-identifier tuple k-anonymity is enforced over.
type GroupKey struct {
	Region      string
	OutcomeType string
	AgeBracket  string
	Gender      string
}

func (r AnonymizedIndividualRecord) GroupKey() GroupKey {
	return GroupKey{Region: r.Region, OutcomeType: r.OutcomeType, AgeBracket: r.AgeBracket, Gender: r.Gender}
}

// OutcomeAggregate describes a group of at least K patients, never an individual.
type OutcomeAggregate struct {
	Region            string   `json:"region" parquet:"region"`
	OutcomeType       string   `json:"outcome_type" parquet:"outcome_type"`
	AgeBracket        string   `json:"age_bracket" parquet:"age_bracket"`
	Gender            string   `json:"gender" parquet:"gender"`
	MeanBaselineScore *float64 `json:"mean_baseline_score" parquet:"mean_baseline_score,optional"`
	MeanFinalScore    *float64 `json:"mean_final_score" parquet:"mean_final_score,optional"`
	ImprovementPct    *float64 `json:"improvement_pct" parquet:"improvement_pct,optional"`
	GroupSize         int64    `json:"group_size" parquet:"group_size"`
}
