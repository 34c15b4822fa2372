package store

import (
	"context"
	"fmt"
	"time"

	"github.com/qivr/analytics-etl/internal/domain"
)

type OutcomeQueries struct {
	db      querier
	timeout time.Duration
}

func NewOutcomeQueries(db querier, timeout time.Duration) *OutcomeQueries {
	return &OutcomeQueries{db: db, timeout: timeout}
}

// ExtractOutcomes returns one observation per treatment plan whose final
// outcome measure was completed inside the window, paired with the earliest
// baseline of the same measure. Names, contact details and notes are never selected.
func (q *OutcomeQueries) ExtractOutcomes(ctx context.Context, w domain.Window) ([]domain.OutcomeObservation, error) {
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()

	rows, err := q.db.Query(ctx,
		`SELECT tp.patient_id, tp.tenant_id,
		        u.date_of_birth, u.gender, u.state, u.postcode, t.timezone,
		        tp.condition_category, tp.treatment_type, pt.key,
		        b.score::float8, f.score::float8, s.sessions,
		        tp.start_date, f.completed_at
		 FROM treatment_plans tp
		 JOIN tenants t ON t.id = tp.tenant_id AND t.deleted_at IS NULL
		 JOIN users u ON u.id = tp.patient_id AND u.deleted_at IS NULL
		 JOIN LATERAL (
		     SELECT pi.template_id, pi.score, pi.completed_at
		     FROM prom_instances pi
		     WHERE pi.treatment_plan_id = tp.id
		       AND pi.instance_type = 'FinalOutcome' AND pi.status = 'Completed'
		       AND pi.deleted_at IS NULL
		       AND pi.completed_at >= $1 AND pi.completed_at < $2
		     ORDER BY pi.completed_at DESC
		     LIMIT 1
		 ) f ON true
		 LEFT JOIN prom_templates pt ON pt.id = f.template_id
		 LEFT JOIN LATERAL (
		     SELECT pi.score
		     FROM prom_instances pi
		     WHERE pi.treatment_plan_id = tp.id AND pi.template_id = f.template_id
		       AND pi.instance_type = 'Baseline' AND pi.status = 'Completed'
		       AND pi.deleted_at IS NULL
		     ORDER BY pi.completed_at ASC
		     LIMIT 1
		 ) b ON true
		 LEFT JOIN LATERAL (
		     SELECT COUNT(*)::bigint AS sessions
		     FROM appointments a
		     WHERE a.patient_id = tp.patient_id AND a.tenant_id = tp.tenant_id
		       AND a.status = 'Completed' AND a.deleted_at IS NULL
		       AND a.scheduled_start >= tp.start_date AND a.scheduled_start <= f.completed_at
		 ) s ON true
		 WHERE tp.deleted_at IS NULL
		 ORDER BY tp.tenant_id, tp.patient_id, f.completed_at`,
		w.Start, w.End,
	)
	if err != nil {
		return nil, fmt.Errorf("outcomes query: %w", err)
	}
	defer rows.Close()

	var out []domain.OutcomeObservation
	for rows.Next() {
		var o domain.OutcomeObservation
		if err := rows.Scan(
			&o.PatientID, &o.TenantID,
			&o.BirthDate, &o.Gender, &o.State, &o.Postcode, &o.Timezone,
			&o.ConditionCategory, &o.TreatmentType, &o.OutcomeType,
			&o.BaselineScore, &o.FinalScore, &o.SessionCount,
			&o.StartedAt, &o.DischargedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outcome rows: %w", err)
	}
	return out, nil
}
