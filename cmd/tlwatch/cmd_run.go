package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"tlwatch/internal/changes"
	"tlwatch/internal/ingest"
	"tlwatch/internal/trustlist/models"
)

func runCycleCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.ingestService(ctx)
	if err != nil {
		return err
	}
	result, cycleErr := svc.RunCycle(ctx)
	if result != nil {
		printCycle(cmd, result)
	}
	// Metrics are pushed for failed cycles too; the failure is what alerts on.
	if err := pushMetrics(context.WithoutCancel(ctx), a); err != nil {
		log.WarnContext(ctx, "failed to push metrics", "url", cfg.Metrics.PushgatewayURL, "error", err)
	}
	return cycleErr
}

func pushMetrics(ctx context.Context, a *app) error {
	if cfg.Metrics.PushgatewayURL == "" {
		return nil
	}
	return push.New(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job).
		Gatherer(a.registry).
		PushContext(ctx)
}

func printCycle(cmd *cobra.Command, r *ingest.CycleResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %d %s (cycle %s)\n", r.RunID, r.Status, r.CycleID)
	if r.Status != models.RunStatusOK {
		return
	}
	fmt.Fprintf(out, "  pointers: %d  providers: %d  services: %d\n", len(r.Pointers), r.Providers, r.Services)
	for _, dq := range r.Quality {
		fmt.Fprintf(out, "  %s [%s] %s: %d\n", dq.RuleID, dq.Severity, dq.Description, dq.FailedCount)
	}
	if r.Changes == nil || !r.Changes.Compared {
		fmt.Fprintln(out, "  changes: no previous run to compare")
		return
	}
	summary := changes.Summary(r.Changes.Changes)
	fmt.Fprintf(out, "  changes vs run %d: added %d, removed %d, status changed %d\n",
		r.Changes.Pair.Previous,
		summary[models.ChangeServiceAdded],
		summary[models.ChangeServiceRemoved],
		summary[models.ChangeStatusChanged],
	)
}
