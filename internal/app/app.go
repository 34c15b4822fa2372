package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/qivr/analytics-etl/internal/anonymize"
	"github.com/qivr/analytics-etl/internal/buildconfig"
	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/qivr/analytics-etl/internal/encode"
	"github.com/qivr/analytics-etl/internal/metrics"
	"github.com/qivr/analytics-etl/internal/pipeline"
	"github.com/qivr/analytics-etl/internal/publish"
	"github.com/qivr/analytics-etl/internal/secrets"
	"github.com/qivr/analytics-etl/internal/store"
	"go.uber.org/zap"
)

const pushJob = "analytics_etl"

// App is the fully wired run pipeline for one process.
type App struct {
	Settings     config.Settings
	Orchestrator *pipeline.Orchestrator
	Metrics      *metrics.Metrics
	logger       *zap.Logger
}

// Build validates settings and wires every client. AWS configuration is only
// loaded when a component needs it, so local runs with DATABASE_URL, a
// literal salt and an output directory work without credentials.
func Build(ctx context.Context, s config.Settings, m *metrics.Metrics, logger *zap.Logger) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New(nil)
	}

	needAWS := s.DatabaseURL == "" || s.PseudonymSalt == "" || s.OutDir == ""
	var awsCfg aws.Config
	if needAWS {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(s.AWSRegion),
			awsconfig.WithAppID(buildconfig.UserAgent()),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
	}
	var sm *secrets.Manager
	if s.DatabaseURL == "" || s.PseudonymSalt == "" {
		sm = secrets.NewManager(secretsmanager.NewFromConfig(awsCfg), logger)
	}

	salt := s.PseudonymSalt
	if salt == "" {
		var err error
		salt, err = sm.Salt(ctx, s.PseudonymSaltSecretID)
		if err != nil {
			return nil, fmt.Errorf("load pseudonym salt: %w", err)
		}
	}
	anon, err := newAnonymizer(salt, s.AgeBracketScheme, s.KThreshold)
	if err != nil {
		return nil, err
	}

	var creds domain.CredentialSource
	if s.DatabaseURL == "" {
		creds = secrets.NewDBSecret(sm, s.DBSecretID)
	}
	connector := store.NewConnector(creds, s.DatabaseURL, store.Options{StatementTimeout: s.StatementTimeout}, logger)

	objects, err := newObjectStore(awsCfg, s)
	if err != nil {
		return nil, err
	}
	publisher := publish.NewPublisher(objects, s.Bucket, s.OutputPrefix, logger)

	format, err := encode.ParseFormat(s.OutputFormat)
	if err != nil {
		return nil, err
	}
	compression, err := encode.ParseCompression(s.OutputCompression)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.New(connector, anon, publisher, pipeline.Options{
		Format:       format,
		Compression:  compression,
		OutcomesMode: domain.OutcomeMode(s.OutcomesMode),
		LookbackDays: s.LookbackDays,
		Parallel:     s.ParallelDomains,
		Domains:      domains(s.Domains),
	}, m, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline configured",
		zap.String("bucket", s.Bucket),
		zap.String("out_dir", s.OutDir),
		zap.String("format", string(format)),
		zap.String("outcomes_mode", s.OutcomesMode),
		zap.Int("k", anon.K()),
		zap.Int("lookback_days", s.LookbackDays),
		zap.Bool("parallel", s.ParallelDomains))

	return &App{Settings: s, Orchestrator: orch, Metrics: m, logger: logger}, nil
}

func domains(names []string) []domain.Domain {
	out := make([]domain.Domain, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Domain(n))
	}
	return out
}

func newAnonymizer(salt, schemeName string, k int) (*anonymize.Anonymizer, error) {
	pseudo, err := anonymize.NewPseudonymizer(salt)
	if err != nil {
		return nil, err
	}
	scheme, err := anonymize.LookupScheme(schemeName)
	if err != nil {
		return nil, err
	}
	return anonymize.New(pseudo, scheme, k)
}

func newObjectStore(awsCfg aws.Config, s config.Settings) (domain.ObjectStore, error) {
	if s.OutDir != "" {
		return publish.NewDirStore(s.OutDir)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(s.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return publish.NewS3Store(client), nil
}

// PushMetrics sends the registry to the configured Pushgateway. Failures are
// logged and never fail the run.
func (a *App) PushMetrics(ctx context.Context) {
	if a.Settings.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.Metrics.Push(ctx, a.Settings.PushgatewayURL, pushJob); err != nil {
		a.logger.Warn("metrics push failed", zap.Error(err))
	}
}
