package store

import (
	"context"
	"fmt"
	"time"

	"github.com/qivr/analytics-etl/internal/domain"
)

type TenantQueries struct {
	db      querier
	timeout time.Duration
}

func NewTenantQueries(db querier, timeout time.Duration) *TenantQueries {
	return &TenantQueries{db: db, timeout: timeout}
}

// ExtractTenants snapshots every live tenant created before the window closes,
// with patient and staff head counts.
func (q *TenantQueries) ExtractTenants(ctx context.Context, w domain.Window) ([]domain.TenantRow, error) {
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()

	rows, err := q.db.Query(ctx,
		`SELECT t.id, t.name, t.slug, t.status, t.plan, t.timezone, t.created_at,
		        COUNT(u.id) FILTER (WHERE u.user_type = 'Patient') AS patient_count,
		        COUNT(u.id) FILTER (WHERE u.user_type <> 'Patient') AS staff_count
		 FROM tenants t
		 LEFT JOIN users u ON u.tenant_id = t.id AND u.deleted_at IS NULL
		 WHERE t.deleted_at IS NULL AND t.created_at < $1
		 GROUP BY t.id
		 ORDER BY t.id`,
		w.End,
	)
	if err != nil {
		return nil, fmt.Errorf("tenants query: %w", err)
	}
	defer rows.Close()

	var out []domain.TenantRow
	for rows.Next() {
		var r domain.TenantRow
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Slug, &r.Status, &r.Plan, &r.Timezone, &r.CreatedAt,
			&r.PatientCount, &r.StaffCount,
		); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenant rows: %w", err)
	}
	return out, nil
}
