package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks SnapshotStore,DocumentFetcher,QualityEngine,ChangeDetector,ChangePublisher,CycleLock

import (
	"context"
	"time"

	"tlwatch/internal/changes"
	"tlwatch/internal/fetch"
	"tlwatch/internal/ingest/lock"
	"tlwatch/internal/trustlist/models"
)

// SnapshotStore is the run bookkeeping and snapshot persistence the cycle needs.
type SnapshotStore interface {
	StartRun(ctx context.Context, startedAt time.Time) (int64, error)
	FinishRun(ctx context.Context, runID int64, status models.RunStatus, notes string, finishedAt time.Time) error
	InsertSource(ctx context.Context, src models.Source) error
	SaveSnapshot(ctx context.Context, runID int64, providers []models.Provider, services []models.Service) error
}

type DocumentFetcher interface {
	Fetch(ctx context.Context, kind models.SourceType, countryCode, url string) (*fetch.Document, error)
}

type QualityEngine interface {
	Run(ctx context.Context, runID int64) ([]models.DQResult, error)
}

type ChangeDetector interface {
	DetectLatest(ctx context.Context) (*changes.Result, error)
}

// ChangePublisher forwards detected changes to downstream consumers.
type ChangePublisher interface {
	Publish(ctx context.Context, records []models.ChangeRecord) error
}

// CycleLock keeps two cycles from running at once.
type CycleLock interface {
	Acquire(ctx context.Context) (lock.Release, error)
}
