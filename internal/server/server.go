// Package server runs the long-lived parts of the store side by side:
// the HTTP API, the gRPC health server, the WebSocket hub, the queue
// workers and the scheduler. The first one to fail stops the others.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/app"
	"github.com/shashiranjanraj/ferremas/pkg/grpc"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

// Options toggles the background parts. The HTTP server always runs.
type Options struct {
	Workers   int
	Scheduler bool
	GRPC      bool
}

func DefaultOptions() Options {
	return Options{
		Workers:   config.Int("QUEUE_WORKERS", 4),
		Scheduler: true,
		GRPC:      true,
	}
}

const shutdownTimeout = 15 * time.Second

// Run serves until ctx is cancelled, then shuts everything down.
func Run(ctx context.Context, a *app.App, opts Options) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server: http listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("server: shutting down http")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return a.Hub.Run(ctx) })

	if opts.GRPC {
		g.Go(func() error {
			return grpc.Serve(ctx, config.GRPCPort(), grpc.NewServer(a.Health))
		})
	}
	if opts.Workers > 0 {
		g.Go(func() error { return a.Queue.Work(ctx, opts.Workers) })
	}
	if opts.Scheduler {
		g.Go(func() error { return a.Scheduler.Start(ctx) })
	}

	return g.Wait()
}
