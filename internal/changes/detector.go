// Package changes compares the two most recent successful snapshots and records
// service additions, removals and status transitions.
package changes

//go:generate mockgen -source=detector.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tlwatch/internal/trustlist/models"
)

// Store is the slice of the snapshot store the detector reads and writes.
type Store interface {
	// LatestRunPair returns the two highest successful run ids. ok is false when
	// fewer than two successful runs exist.
	LatestRunPair(ctx context.Context) (pair models.RunPair, ok bool, err error)
	ServicesForRun(ctx context.Context, runID int64) ([]models.Service, error)
	// UpsertChanges writes records keyed by (run_id, change_type, service_key).
	UpsertChanges(ctx context.Context, records []models.ChangeRecord) error
}

// Result is the outcome of one detection. Compared is false when there was no
// previous run to compare against; Pair and Changes are then empty.
type Result struct {
	Compared bool
	Pair     models.RunPair
	Changes  []models.ChangeRecord
}

type Detector struct {
	store  Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func New(store Store, opts ...Option) (*Detector, error) {
	if store == nil {
		return nil, fmt.Errorf("change store is required")
	}
	d := &Detector{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DetectLatest diffs the two most recent successful runs and upserts the changes
// under the newer run. Running it again for the same pair rewrites the same rows.
func (d *Detector) DetectLatest(ctx context.Context) (*Result, error) {
	pair, ok, err := d.store.LatestRunPair(ctx)
	if err != nil {
		return nil, fmt.Errorf("load run pair: %w", err)
	}
	if !ok {
		d.logger.InfoContext(ctx, "fewer than two successful runs, nothing to compare")
		return &Result{}, nil
	}

	prev, err := d.store.ServicesForRun(ctx, pair.Previous)
	if err != nil {
		return nil, fmt.Errorf("load services for run %d: %w", pair.Previous, err)
	}
	next, err := d.store.ServicesForRun(ctx, pair.Current)
	if err != nil {
		return nil, fmt.Errorf("load services for run %d: %w", pair.Current, err)
	}

	records := Diff(pair.Current, prev, next, d.clock())
	if len(records) > 0 {
		if err := d.store.UpsertChanges(ctx, records); err != nil {
			return nil, fmt.Errorf("save changes for run %d: %w", pair.Current, err)
		}
	}

	summary := Summary(records)
	d.logger.InfoContext(ctx, "changes detected",
		"previous_run_id", pair.Previous,
		"run_id", pair.Current,
		"added", summary[models.ChangeServiceAdded],
		"removed", summary[models.ChangeServiceRemoved],
		"status_changed", summary[models.ChangeStatusChanged],
	)

	return &Result{Compared: true, Pair: pair, Changes: records}, nil
}
