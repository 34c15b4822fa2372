package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageRow is one tenant-day of activity counts as read from the store.
type UsageRow struct {
	TenantID              uuid.UUID
	Date                  time.Time
	Appointments          int64
	CompletedAppointments int64
	Messages              int64
	Documents             int64
}

type UsageRecord struct {
	TenantID                  string `json:"tenant_id" parquet:"tenant_id"`
	Date                      Date   `json:"date" parquet:"date,date"`
	AppointmentCount          int64  `json:"appointment_count" parquet:"appointment_count"`
	CompletedAppointmentCount int64  `json:"completed_appointment_count" parquet:"completed_appointment_count"`
	MessageCount              int64  `json:"message_count" parquet:"message_count"`
	DocumentCount             int64  `json:"document_count" parquet:"document_count"`
}
