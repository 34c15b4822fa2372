package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/metrics"
	"github.com/qivr/analytics-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func localSettings(t *testing.T) config.Settings {
	return config.Settings{
		DatabaseURL:       "postgres://ro:ro@127.0.0.1:1/qivr?sslmode=disable&connect_timeout=1",
		DBSecretID:        "qivr/analytics/readonly-db",
		OutDir:            t.TempDir(),
		LookbackDays:      30,
		KThreshold:        10,
		PseudonymSalt:     "local-salt",
		AgeBracketScheme:  "standard",
		OutcomesMode:      "aggregate",
		OutputFormat:      "ndjson",
		OutputCompression: "snappy",
		StatementTimeout:  time.Minute,
		AWSRegion:         "ap-southeast-2",
	}
}

func TestBuild_LocalNeedsNoAWS(t *testing.T) {
	a, err := Build(context.Background(), localSettings(t), metrics.New(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Orchestrator)
}

func TestBuild_RejectsInvalidSettings(t *testing.T) {
	s := localSettings(t)
	s.KThreshold = 1
	_, err := Build(context.Background(), s, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestBuild_UnreachableStoreIsConnectionFailure(t *testing.T) {
	a, err := Build(context.Background(), localSettings(t), metrics.New(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = a.Orchestrator.Run(ctx, pipeline.RunRequest{})
	assert.ErrorIs(t, err, pipeline.ErrConnection)
}

func TestPushMetrics_NoGatewayIsNoop(t *testing.T) {
	a, err := Build(context.Background(), localSettings(t), metrics.New(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)
	a.PushMetrics(context.Background())
}
