package store

import (
	"context"
	"fmt"
	"time"

	"github.com/qivr/analytics-etl/internal/domain"
)

type UsageQueries struct {
	db      querier
	timeout time.Duration
}

func NewUsageQueries(db querier, timeout time.Duration) *UsageQueries {
	return &UsageQueries{db: db, timeout: timeout}
}

// ExtractUsage returns one row per tenant and UTC day with any activity in the window.
func (q *UsageQueries) ExtractUsage(ctx context.Context, w domain.Window) ([]domain.UsageRow, error) {
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()

	rows, err := q.db.Query(ctx,
		`WITH activity AS (
		     SELECT a.tenant_id, (a.scheduled_start AT TIME ZONE 'UTC')::date AS day,
		            1 AS appointments, (a.status = 'Completed')::int AS completed, 0 AS messages, 0 AS documents
		     FROM appointments a
		     WHERE a.deleted_at IS NULL AND a.scheduled_start >= $1 AND a.scheduled_start < $2
		     UNION ALL
		     SELECT m.tenant_id, (m.created_at AT TIME ZONE 'UTC')::date, 0, 0, 1, 0
		     FROM messages m
		     WHERE m.deleted_at IS NULL AND m.created_at >= $1 AND m.created_at < $2
		     UNION ALL
		     SELECT d.tenant_id, (d.created_at AT TIME ZONE 'UTC')::date, 0, 0, 0, 1
		     FROM documents d
		     WHERE d.deleted_at IS NULL AND d.created_at >= $1 AND d.created_at < $2
		 )
		 SELECT act.tenant_id, act.day,
		        SUM(act.appointments)::bigint, SUM(act.completed)::bigint,
		        SUM(act.messages)::bigint, SUM(act.documents)::bigint
		 FROM activity act
		 JOIN tenants t ON t.id = act.tenant_id AND t.deleted_at IS NULL
		 GROUP BY act.tenant_id, act.day
		 ORDER BY act.tenant_id, act.day`,
		w.Start, w.End,
	)
	if err != nil {
		return nil, fmt.Errorf("usage query: %w", err)
	}
	defer rows.Close()

	var out []domain.UsageRow
	for rows.Next() {
		var r domain.UsageRow
		if err := rows.Scan(
			&r.TenantID, &r.Date,
			&r.Appointments, &r.CompletedAppointments, &r.Messages, &r.Documents,
		); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage rows: %w", err)
	}
	return out, nil
}
