package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"tlwatch/internal/trustlist/models"
	"tlwatch/pkg/platform/sentinel"
)

// snapshotStore is the full method set shared by every backend.
type snapshotStore interface {
	StartRun(ctx context.Context, startedAt time.Time) (int64, error)
	FinishRun(ctx context.Context, runID int64, status models.RunStatus, notes string, finishedAt time.Time) error
	GetRun(ctx context.Context, runID int64) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	InsertSource(ctx context.Context, src models.Source) error
	SourcesForRun(ctx context.Context, runID int64) ([]models.Source, error)
	SaveSnapshot(ctx context.Context, runID int64, providers []models.Provider, services []models.Service) error
	ProvidersForRun(ctx context.Context, runID int64) ([]models.Provider, error)
	ServicesForRun(ctx context.Context, runID int64) ([]models.Service, error)
	LatestRunPair(ctx context.Context) (models.RunPair, bool, error)
	UpsertChanges(ctx context.Context, records []models.ChangeRecord) error
	ChangesForRun(ctx context.Context, runID int64) ([]models.ChangeRecord, error)
	UpsertDQResults(ctx context.Context, results []models.DQResult) error
	DQResultsForRun(ctx context.Context, runID int64) ([]models.DQResult, error)
}

var (
	_ snapshotStore = (*InMemoryStore)(nil)
	_ snapshotStore = (*SQLStore)(nil)
)

// contractSuite exercises behaviour every backend must share. Backends embed it
// and assign newStore.
type contractSuite struct {
	suite.Suite
	newStore func() snapshotStore
	store    snapshotStore
	ctx      context.Context
	now      time.Time
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.newStore()
}

func (s *contractSuite) startRun() int64 {
	runID, err := s.store.StartRun(s.ctx, s.now)
	s.Require().NoError(err)
	return runID
}

func statusOf(v string) *string { return &v }

// =============================================================================
// Run Lifecycle
// =============================================================================

func (s *contractSuite) TestRunLifecycle() {
	first := s.startRun()
	second := s.startRun()
	s.Greater(second, first, "run ids increase")

	run, err := s.store.GetRun(s.ctx, first)
	s.Require().NoError(err)
	s.Equal(models.RunStatusOK, run.Status, "runs start optimistic")
	s.Nil(run.FinishedAt)

	s.Run("finish records status and notes once", func() {
		err := s.store.FinishRun(s.ctx, first, models.RunStatusFailed, "parse HR-TL.xml: line 3: boom", s.now.Add(time.Minute))
		s.Require().NoError(err)

		run, err := s.store.GetRun(s.ctx, first)
		s.Require().NoError(err)
		s.Equal(models.RunStatusFailed, run.Status)
		s.Equal("parse HR-TL.xml: line 3: boom", run.Notes)
		s.Require().NotNil(run.FinishedAt)
		s.True(run.FinishedAt.Equal(s.now.Add(time.Minute)))

		err = s.store.FinishRun(s.ctx, first, models.RunStatusOK, "", s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("unknown run", func() {
		_, err := s.store.GetRun(s.ctx, 9999)
		s.ErrorIs(err, sentinel.ErrNotFound)

		err = s.store.FinishRun(s.ctx, 9999, models.RunStatusOK, "", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("list newest first", func() {
		runs, err := s.store.ListRuns(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(runs, 2)
		s.Equal(second, runs[0].RunID)
		s.Equal(first, runs[1].RunID)

		runs, err = s.store.ListRuns(s.ctx, 1)
		s.Require().NoError(err)
		s.Len(runs, 1)
	})
}

func (s *contractSuite) TestLatestRunPair() {
	_, ok, err := s.store.LatestRunPair(s.ctx)
	s.Require().NoError(err)
	s.False(ok, "no runs yet")

	first := s.startRun()
	_, ok, err = s.store.LatestRunPair(s.ctx)
	s.Require().NoError(err)
	s.False(ok, "a single run has nothing to compare")

	second := s.startRun()
	failed := s.startRun()
	s.Require().NoError(s.store.FinishRun(s.ctx, failed, models.RunStatusFailed, "boom", s.now))

	pair, ok, err := s.store.LatestRunPair(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(models.RunPair{Previous: first, Current: second}, pair, "failed runs are skipped")

	third := s.startRun()
	pair, ok, err = s.store.LatestRunPair(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(models.RunPair{Previous: second, Current: third}, pair)
}

// =============================================================================
// Snapshot Rows
// =============================================================================

func (s *contractSuite) TestSaveSnapshot() {
	runID := s.startRun()
	providers := []models.Provider{
		{ProviderKey: "p1", CountryCode: "HR", Name: "Fina", InformationURI: "https://www.fina.hr"},
		{ProviderKey: "p2", CountryCode: "HR", Name: "Dormant"},
	}
	services := []models.Service{
		{ServiceKey: "s1", ProviderKey: "p1", CountryCode: "HR", ServiceTypeIdentifier: "QC", ServiceName: "RDC", CurrentStatus: "granted", StatusStartingTime: "2016-06-30T22:00:00Z"},
		{ServiceKey: "s2", ProviderKey: "p1", CountryCode: "HR", ServiceName: "TSA", CurrentStatus: "withdrawn"},
	}
	s.Require().NoError(s.store.SaveSnapshot(s.ctx, runID, providers, services))

	gotProviders, err := s.store.ProvidersForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.ElementsMatch(providers, gotProviders)

	gotServices, err := s.store.ServicesForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.ElementsMatch(services, gotServices)

	s.Run("repeated keys keep the first row", func() {
		dup := services[0]
		dup.CurrentStatus = "withdrawn"
		s.Require().NoError(s.store.SaveSnapshot(s.ctx, runID, nil, []models.Service{dup}))

		got, err := s.store.ServicesForRun(s.ctx, runID)
		s.Require().NoError(err)
		s.Len(got, 2)
		for _, svc := range got {
			if svc.ServiceKey == "s1" {
				s.Equal("granted", svc.CurrentStatus)
			}
		}
	})

	s.Run("snapshots are isolated per run", func() {
		other := s.startRun()
		got, err := s.store.ServicesForRun(s.ctx, other)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *contractSuite) TestSources() {
	runID := s.startRun()
	lotl := models.Source{RunID: runID, SourceType: models.SourceTypeLOTL, URL: "https://ec.europa.eu/tools/lotl/eu-lotl.xml", FetchedAt: s.now, SHA256: "abc", Bytes: 42}
	tl := models.Source{RunID: runID, SourceType: models.SourceTypeTL, CountryCode: "HR", URL: "https://www.mingo.hr/tsl/HR-TL.xml", FetchedAt: s.now, SHA256: "def", Bytes: 7}
	s.Require().NoError(s.store.InsertSource(s.ctx, lotl))
	s.Require().NoError(s.store.InsertSource(s.ctx, tl))

	got, err := s.store.SourcesForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(models.SourceTypeLOTL, got[0].SourceType)
	s.Equal("", got[0].CountryCode)
	s.Equal("HR", got[1].CountryCode)
	s.Equal(int64(7), got[1].Bytes)
}

// =============================================================================
// Upserts
// =============================================================================

func (s *contractSuite) TestUpsertChangesIsIdempotent() {
	runID := s.startRun()
	records := []models.ChangeRecord{
		{RunID: runID, Kind: models.ChangeServiceAdded, ServiceKey: "s3", CountryCode: "HR", NewValue: statusOf("granted"), DetectedAt: s.now},
		{RunID: runID, Kind: models.ChangeServiceRemoved, ServiceKey: "s2", CountryCode: "HR", OldValue: statusOf("withdrawn"), DetectedAt: s.now},
		{RunID: runID, Kind: models.ChangeStatusChanged, ServiceKey: "s1", CountryCode: "HR", OldValue: statusOf("granted"), NewValue: statusOf("withdrawn"), DetectedAt: s.now},
	}
	s.Require().NoError(s.store.UpsertChanges(s.ctx, records))
	s.Require().NoError(s.store.UpsertChanges(s.ctx, records))

	got, err := s.store.ChangesForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(got, 3)

	byKind := make(map[models.ChangeKind]models.ChangeRecord)
	for _, r := range got {
		byKind[r.Kind] = r
	}
	s.Nil(byKind[models.ChangeServiceAdded].OldValue)
	s.Equal("granted", *byKind[models.ChangeServiceAdded].NewValue)
	s.Nil(byKind[models.ChangeServiceRemoved].NewValue)
	s.Equal("withdrawn", *byKind[models.ChangeServiceRemoved].OldValue)
	s.Equal("granted", *byKind[models.ChangeStatusChanged].OldValue)
	s.Equal("withdrawn", *byKind[models.ChangeStatusChanged].NewValue)
}

func (s *contractSuite) TestUpsertDQResultsIsIdempotent() {
	runID := s.startRun()
	results := []models.DQResult{
		{RunID: runID, RuleID: "R1", Description: "ServiceTypeIdentifier must not be empty", Severity: models.SeverityError, FailedCount: 2, SampleKeys: []string{"a", "b"}, CreatedAt: s.now},
		{RunID: runID, RuleID: "R3", Description: "ServiceStatus should not be empty", Severity: models.SeverityWarn, FailedCount: 0, SampleKeys: []string{}, CreatedAt: s.now},
	}
	s.Require().NoError(s.store.UpsertDQResults(s.ctx, results))

	results[0].FailedCount = 1
	results[0].SampleKeys = []string{"a"}
	s.Require().NoError(s.store.UpsertDQResults(s.ctx, results))

	got, err := s.store.DQResultsForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("R1", got[0].RuleID)
	s.Equal(1, got[0].FailedCount)
	s.Equal([]string{"a"}, got[0].SampleKeys)
	s.Equal(models.SeverityWarn, got[1].Severity)
	s.Empty(got[1].SampleKeys)
}
