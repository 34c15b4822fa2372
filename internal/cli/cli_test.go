package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/qivr/analytics-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "etl dev")
}

func TestRunOptions_Request(t *testing.T) {
	o := &runOptions{date: "2026-10-14", runID: "manual-1"}
	req, err := o.request()
	require.NoError(t, err)
	assert.Equal(t, "manual-1", req.RunID)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), req.LogicalDate)

	o = &runOptions{}
	req, err = o.request()
	require.NoError(t, err)
	assert.True(t, req.LogicalDate.IsZero())

	o = &runOptions{date: "14/10/2026"}
	_, err = o.request()
	assert.Error(t, err)
}

func TestRunOptions_ApplyOnlyChangedFlags(t *testing.T) {
	o := &runOptions{}
	cmd := runCmd(o)
	require.NoError(t, cmd.Flags().Parse([]string{"--out-dir", "/tmp/out", "--format", "ndjson", "--domain", "usage", "--domain", "tenants"}))

	s := config.Settings{
		Bucket:       "qivr-analytics-data-lake",
		LookbackDays: 30,
		OutputFormat: "parquet",
		OutcomesMode: "aggregate",
	}
	o.apply(cmd, &s)

	assert.Equal(t, "/tmp/out", s.OutDir)
	assert.Equal(t, "ndjson", s.OutputFormat)
	assert.Equal(t, []string{"usage", "tenants"}, s.Domains)
	assert.Equal(t, 30, s.LookbackDays)
	assert.Equal(t, "aggregate", s.OutcomesMode)
}

func TestSummaryError(t *testing.T) {
	assert.NoError(t, summaryError(&pipeline.Summary{Status: pipeline.RunComplete}))

	partial := &pipeline.Summary{
		RunID:  "r1",
		Status: pipeline.RunPartial,
		Domains: map[domain.Domain]*pipeline.DomainResult{
			domain.DomainUsage: {Status: pipeline.DomainFailed},
		},
	}
	err := summaryError(partial)
	require.Error(t, err)
	assert.Equal(t, ExitPartial, exitCode(err))

	err = summaryError(&pipeline.Summary{RunID: "r2", Status: pipeline.RunFailed})
	assert.Equal(t, ExitFailure, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, exitCode(nil))
	assert.Equal(t, ExitFailure, exitCode(errors.New("boom")))
}
