package app

import (
	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/logging"
	"go.uber.org/zap"
)

// Setup loads the environment files and builds the process logger.
func Setup(service string) (*zap.Logger, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   config.LogLevel(),
		Dev:     config.LogDev(),
		Service: service,
	})
}
