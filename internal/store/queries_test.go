package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scratchDatabase creates the schema in a throwaway Postgres schema and
// returns a URL whose sessions resolve table names there.
func scratchDatabase(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("ETL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ETL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "etl_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE") })

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	scoped := url + sep + "search_path=" + schema

	writer, err := pgxpool.New(ctx, scoped)
	require.NoError(t, err)
	t.Cleanup(writer.Close)
	_, err = writer.Exec(ctx, Schema)
	require.NoError(t, err)
	return scoped, writer
}

func TestQueries_Integration(t *testing.T) {
	url, db := scratchDatabase(t)
	ctx := context.Background()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	w := domain.NewWindow(day, 30)

	tenantID := uuid.New()
	deletedTenant := uuid.New()
	patient := uuid.New()
	staff := uuid.New()
	plan := uuid.New()
	tmpl := uuid.New()

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO tenants (id, name, slug, status, plan, timezone, created_at) VALUES ($1, 'Harbour Physio', 'harbour', 'Active', 'professional', 'Australia/Sydney', $2)`,
			[]any{tenantID, day.AddDate(-1, 0, 0)}},
		{`INSERT INTO tenants (id, name, slug, created_at, deleted_at) VALUES ($1, 'Gone', 'gone', $2, $2)`,
			[]any{deletedTenant, day.AddDate(-1, 0, 0)}},
		{`INSERT INTO users (id, tenant_id, user_type, first_name, date_of_birth, gender, state) VALUES ($1, $2, 'Patient', 'Jane', '1990-03-03', 'female', 'NSW')`,
			[]any{patient, tenantID}},
		{`INSERT INTO users (id, tenant_id, user_type) VALUES ($1, $2, 'Clinician')`,
			[]any{staff, tenantID}},
		{`INSERT INTO appointments (id, tenant_id, patient_id, scheduled_start, status) VALUES ($1, $2, $3, $4, 'Completed')`,
			[]any{uuid.New(), tenantID, patient, day.Add(-48 * time.Hour)}},
		{`INSERT INTO appointments (id, tenant_id, patient_id, scheduled_start, status) VALUES ($1, $2, $3, $4, 'Scheduled')`,
			[]any{uuid.New(), tenantID, patient, day.Add(-47 * time.Hour)}},
		{`INSERT INTO appointments (id, tenant_id, patient_id, scheduled_start, status, deleted_at) VALUES ($1, $2, $3, $4, 'Completed', now())`,
			[]any{uuid.New(), tenantID, patient, day.Add(-46 * time.Hour)}},
		{`INSERT INTO messages (id, tenant_id, created_at) VALUES ($1, $2, $3)`,
			[]any{uuid.New(), tenantID, day.Add(10 * time.Hour)}},
		{`INSERT INTO treatment_plans (id, tenant_id, patient_id, condition_category, treatment_type, status, start_date) VALUES ($1, $2, $3, 'Lower Back', 'Physiotherapy', 'Completed', $4)`,
			[]any{plan, tenantID, patient, day.AddDate(0, 0, -20)}},
		{`INSERT INTO prom_templates (id, key) VALUES ($1, 'ODI')`, []any{tmpl}},
		{`INSERT INTO prom_instances (id, tenant_id, patient_id, treatment_plan_id, template_id, instance_type, status, score, completed_at) VALUES ($1, $2, $3, $4, $5, 'Baseline', 'Completed', 40, $6)`,
			[]any{uuid.New(), tenantID, patient, plan, tmpl, day.AddDate(0, 0, -20)}},
		{`INSERT INTO prom_instances (id, tenant_id, patient_id, treatment_plan_id, template_id, instance_type, status, score, completed_at) VALUES ($1, $2, $3, $4, $5, 'FinalOutcome', 'Completed', 20, $6)`,
			[]any{uuid.New(), tenantID, patient, plan, tmpl, day.Add(-24 * time.Hour)}},
	}
	for i, s := range stmts {
		_, err := db.Exec(ctx, s.sql, s.args...)
		require.NoError(t, err, fmt.Sprintf("statement %d", i))
	}

	session, err := NewConnector(nil, url, Options{StatementTimeout: time.Minute}, zap.NewNop()).Connect(ctx)
	require.NoError(t, err)
	defer session.Close()

	tenants, err := session.ExtractTenants(ctx, w)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, tenantID, tenants[0].ID)
	assert.Equal(t, int64(1), tenants[0].PatientCount)
	assert.Equal(t, int64(1), tenants[0].StaffCount)

	usage, err := session.ExtractUsage(ctx, w)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, int64(2), usage[0].Appointments)
	assert.Equal(t, int64(1), usage[0].CompletedAppointments)
	assert.Equal(t, int64(1), usage[1].Messages)

	outcomes, err := session.ExtractOutcomes(ctx, w)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, patient, o.PatientID)
	require.NotNil(t, o.OutcomeType)
	assert.Equal(t, "ODI", *o.OutcomeType)
	require.NotNil(t, o.BaselineScore)
	assert.Equal(t, 40.0, *o.BaselineScore)
	require.NotNil(t, o.SessionCount)
	assert.Equal(t, int64(1), *o.SessionCount)

	// Sessions are read-only.
	s := session.(*Session)
	_, err = s.pool.Exec(ctx, "DELETE FROM messages")
	assert.Error(t, err)
}
