// Package quality runs data quality rules over a persisted snapshot and records
// one result per rule per run.
package quality

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tlwatch/internal/trustlist/models"
)

type Store interface {
	ServicesForRun(ctx context.Context, runID int64) ([]models.Service, error)
	// UpsertDQResults writes results keyed by (run_id, rule_id).
	UpsertDQResults(ctx context.Context, results []models.DQResult) error
}

type Engine struct {
	store  Store
	rules  []Rule
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("quality store is required")
	}
	e := &Engine{
		store:  store,
		rules:  DefaultRules(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, r := range e.rules {
		if r.ID == "" || r.Fails == nil {
			return nil, fmt.Errorf("quality rule %q is incomplete", r.ID)
		}
	}
	return e, nil
}

// Run evaluates the rule set against runID and upserts the results. Running it
// again for the same run replaces the previous results.
func (e *Engine) Run(ctx context.Context, runID int64) ([]models.DQResult, error) {
	services, err := e.store.ServicesForRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load services for run %d: %w", runID, err)
	}

	results := Evaluate(runID, services, e.rules, e.clock())
	if err := e.store.UpsertDQResults(ctx, results); err != nil {
		return nil, fmt.Errorf("save dq results for run %d: %w", runID, err)
	}

	for _, r := range results {
		if r.FailedCount == 0 {
			continue
		}
		e.logger.WarnContext(ctx, "quality rule failed",
			"run_id", runID,
			"rule_id", r.RuleID,
			"severity", r.Severity,
			"failed_count", r.FailedCount,
		)
	}
	return results, nil
}
