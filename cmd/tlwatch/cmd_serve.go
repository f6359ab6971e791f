package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tlwatch/internal/api/handler"
	httpapi "tlwatch/internal/http"
	"tlwatch/internal/ingest"
	"tlwatch/internal/platform/httpserver"
	"tlwatch/internal/platform/metrics"
	"tlwatch/pkg/platform/sentinel"
)

const shutdownTimeout = 10 * time.Second

func runServeCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("interval") {
		cfg.Server.RunInterval = interval
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	h := handler.New(a.store, log, a.healthChecks())
	router := httpapi.NewRouter(h, log, metrics.NewHTTP(a.registry), a.registry)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting api server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Server.RunInterval > 0 {
		svc, err := a.ingestService(ctx)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			scheduleCycles(gctx, svc, cfg.Server.RunInterval)
			return nil
		})
	}
	return g.Wait()
}

// scheduleCycles runs a cycle immediately and then every interval until ctx is
// done. Cycle failures are logged; the run itself records them.
func scheduleCycles(ctx context.Context, svc *ingest.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		result, err := svc.RunCycle(ctx)
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			log.InfoContext(ctx, "cycle skipped, another instance holds the lock")
		case err != nil:
			log.ErrorContext(ctx, "scheduled cycle failed", "error", err)
		default:
			log.InfoContext(ctx, "scheduled cycle finished", "run_id", result.RunID, "services", result.Services)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
