// Package server runs the HTTP listener, and the gRPC health listener when
// GRPC_PORT is set, until the context is cancelled or a signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/catalog/pkg/grpc"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/schedule"
)

const shutdownTimeout = 20 * time.Second

// Options configures Run.
type Options struct {
	Addr     string
	GRPCAddr string // empty disables gRPC
	Handler  http.Handler
	Health   grpc.Checker
	Tasks    *schedule.Scheduler // nil or empty runs nothing
}

// Run serves until SIGINT/SIGTERM or ctx is done, then drains in-flight
// requests for up to 20 seconds.
func Run(ctx context.Context, opts Options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           opts.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var rpc *grpc.Server
	if opts.GRPCAddr != "" {
		var err error
		if rpc, err = grpc.Listen(opts.GRPCAddr, opts.Health); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	if rpc != nil {
		g.Go(rpc.Serve)
	}

	if opts.Tasks != nil && opts.Tasks.Len() > 0 {
		g.Go(func() error { return opts.Tasks.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down, waiting for in-flight requests")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		rpc.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
