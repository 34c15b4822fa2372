package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "Active"
	TenantStatusSuspended TenantStatus = "Suspended"
	TenantStatusCancelled TenantStatus = "Cancelled"
	TenantStatusTrial     TenantStatus = "Trial"
	TenantStatusUnknown   TenantStatus = Unknown
)

// ParseTenantStatus maps a stored status onto the closed enumeration.
// Matching is case-insensitive; anything unrecognised becomes unknown.
func ParseTenantStatus(s string) TenantStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "0":
		return TenantStatusActive
	case "suspended", "1":
		return TenantStatusSuspended
	case "cancelled", "canceled", "2":
		return TenantStatusCancelled
	case "trial", "3":
		return TenantStatusTrial
	}
	return TenantStatusUnknown
}

type PlanTier string

const (
	PlanTierStarter      PlanTier = "starter"
	PlanTierProfessional PlanTier = "professional"
	PlanTierEnterprise   PlanTier = "enterprise"
	PlanTierUnknown      PlanTier = Unknown
)

// planMonthlyPrice is the list price per plan tier in AUD.
var planMonthlyPrice = map[PlanTier]float64{
	PlanTierStarter:      99,
	PlanTierProfessional: 299,
	PlanTierEnterprise:   999,
}

func ParsePlanTier(s string) PlanTier {
	switch p := PlanTier(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanTierStarter, PlanTierProfessional, PlanTierEnterprise:
		return p
	case "pro":
		return PlanTierProfessional
	}
	return PlanTierUnknown
}

// MonthlyRevenue returns the derived monthly revenue for the tier; unknown tiers earn 0.
func (p PlanTier) MonthlyRevenue() float64 {
	return planMonthlyPrice[p]
}

// TenantRow is a tenant as read from the operational store.
type TenantRow struct {
	ID           uuid.UUID
	Name         string
	Slug         string
	Status       *string
	Plan         *string
	Timezone     *string
	CreatedAt    time.Time
	PatientCount int64
	StaffCount   int64
}

// TenantRecord is organisational metadata; identifiers are not pseudonymised.
type TenantRecord struct {
	ID             string    `json:"id" parquet:"id"`
	Name           string    `json:"name" parquet:"name"`
	Slug           string    `json:"slug" parquet:"slug"`
	Status         string    `json:"status" parquet:"status"`
	PlanTier       string    `json:"plan_tier" parquet:"plan_tier"`
	Region         string    `json:"region" parquet:"region"`
	CreatedAt      time.Time `json:"created_at" parquet:"created_at,timestamp(millisecond)"`
	PatientCount   int64     `json:"patient_count" parquet:"patient_count"`
	StaffCount     int64     `json:"staff_count" parquet:"staff_count"`
	DerivedRevenue float64   `json:"derived_revenue" parquet:"derived_revenue"`
}
