package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/qivr/analytics-etl/internal/app"
	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/trigger"
	"go.uber.org/zap"
)

func main() {
	logger, err := app.Setup("analytics-etl-lambda")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Built once per container; warm invocations reuse the salt and clients.
	a, err := app.Build(context.Background(), config.FromEnv(), nil, logger)
	if err != nil {
		logger.Fatal("failed to configure pipeline", zap.Error(err))
	}
	h := trigger.NewHandler(a.Orchestrator, logger)

	lambda.Start(func(ctx context.Context, ev json.RawMessage) (trigger.Response, error) {
		defer a.PushMetrics(ctx)
		return h.Handle(ctx, ev)
	})
}
