// internal/app/runtime.go
package app

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"kmerwalk/internal/cli"
	"kmerwalk/internal/config"
	"kmerwalk/internal/logging"
	"kmerwalk/internal/metrics"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/telemetry"
	"kmerwalk/internal/version"
)

// runtime is what every subcommand needs: a logger, metrics and a client.
type runtime struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *oracle.Client
}

func withRuntime(cfg config.Config, g cli.Global, stderr io.Writer, fn func(*runtime) error) error {
	logger, err := logging.New(stderr, logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Quiet: g.Quiet})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdown, err := telemetry.Setup(cfg.Tracing, stderr, version.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("trace shutdown", zap.Error(err))
		}
	}()

	m := metrics.New()
	client := oracle.NewClient(oracle.ClientConfig{
		BaseURL:           cfg.Server,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
	client.Metrics = m

	logger.Debug("configuration",
		zap.String("server", cfg.Server),
		zap.Int("page_size", cfg.PageSize),
		zap.Duration("retry_initial", cfg.RetryInitial),
		zap.Duration("retry_max", cfg.RetryMax),
		zap.Int("parallelism", cfg.Parallelism),
	)
	return fn(&runtime{logger: logger, metrics: m, client: client})
}
