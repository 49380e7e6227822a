// internal/app/serve.go
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kmerwalk/internal/cli"
	"kmerwalk/internal/graph"
	"kmerwalk/internal/server"
)

const shutdownGrace = 5 * time.Second

func runServe(ctx context.Context, rt *runtime, o cli.ServeOptions) error {
	eng := graph.New(rt.client, graph.Config{Metrics: rt.metrics}, rt.logger)
	srv := server.New(eng, server.Config{EventBuffer: o.EventBuffer, Metrics: rt.metrics}, rt.logger)

	hs := &http.Server{
		Addr:              o.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	rt.logger.Info("session API listening", zap.String("addr", o.Listen), zap.String("session", srv.ID()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.logger.Warn("shutdown", zap.Error(err))
	}
	return ctx.Err()
}
