package changes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tlwatch/internal/changes/mocks"
	"tlwatch/internal/snapshot/store"
	"tlwatch/internal/trustlist/models"
)

// =============================================================================
// Detector Test Suite
// =============================================================================
// Justification for unit tests: detection runs after every cycle and must be
// safe to repeat. Tests pin the no-previous-run case, idempotent upserts and
// error propagation from the store.

type DetectorSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *store.InMemoryStore
	det   *Detector
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = store.NewInMemoryStore()
	det, err := New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	s.det = det
}

func (s *DetectorSuite) snapshot(services ...models.Service) int64 {
	runID, err := s.store.StartRun(s.ctx, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveSnapshot(s.ctx, runID, nil, services))
	return runID
}

func (s *DetectorSuite) TestNew() {
	_, err := New(nil)
	s.EqualError(err, "change store is required")
}

func (s *DetectorSuite) TestNothingToCompare() {
	s.snapshot(svc("k1", "HR", granted))

	result, err := s.det.DetectLatest(s.ctx)
	s.Require().NoError(err)
	s.False(result.Compared)
	s.Empty(result.Changes)
}

func (s *DetectorSuite) TestDetectLatest() {
	first := s.snapshot(svc("k1", "HR", granted), svc("k2", "HR", granted))
	second := s.snapshot(svc("k1", "HR", withdrawn), svc("k3", "SI", granted))

	result, err := s.det.DetectLatest(s.ctx)
	s.Require().NoError(err)
	s.True(result.Compared)
	s.Equal(models.RunPair{Previous: first, Current: second}, result.Pair)
	s.Len(result.Changes, 3)

	stored, err := s.store.ChangesForRun(s.ctx, second)
	s.Require().NoError(err)
	s.Len(stored, 3)

	s.Run("re-running rewrites the same rows", func() {
		again, err := s.det.DetectLatest(s.ctx)
		s.Require().NoError(err)
		s.Len(again.Changes, 3)

		stored, err := s.store.ChangesForRun(s.ctx, second)
		s.Require().NoError(err)
		s.Len(stored, 3)
	})
}

func (s *DetectorSuite) TestFailedRunIsSkipped() {
	first := s.snapshot(svc("k1", "HR", granted))
	broken := s.snapshot()
	s.Require().NoError(s.store.FinishRun(s.ctx, broken, models.RunStatusFailed, "fetch failed", s.now))
	third := s.snapshot(svc("k1", "HR", granted))

	result, err := s.det.DetectLatest(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.RunPair{Previous: first, Current: third}, result.Pair)
	s.Empty(result.Changes, "a failed run with no rows must not look like mass removal")
}

// =============================================================================
// Store Failures
// =============================================================================

func (s *DetectorSuite) TestStoreErrors() {
	boom := errors.New("database unavailable")
	pair := models.RunPair{Previous: 1, Current: 2}

	s.Run("pair lookup", func() {
		ctrl := gomock.NewController(s.T())
		mockStore := mocks.NewMockStore(ctrl)
		mockStore.EXPECT().LatestRunPair(gomock.Any()).Return(models.RunPair{}, false, boom)

		det, err := New(mockStore)
		s.Require().NoError(err)
		_, err = det.DetectLatest(s.ctx)
		s.ErrorIs(err, boom)
	})

	s.Run("upsert", func() {
		ctrl := gomock.NewController(s.T())
		mockStore := mocks.NewMockStore(ctrl)
		mockStore.EXPECT().LatestRunPair(gomock.Any()).Return(pair, true, nil)
		mockStore.EXPECT().ServicesForRun(gomock.Any(), int64(1)).Return(nil, nil)
		mockStore.EXPECT().ServicesForRun(gomock.Any(), int64(2)).Return([]models.Service{svc("k1", "HR", granted)}, nil)
		mockStore.EXPECT().UpsertChanges(gomock.Any(), gomock.Len(1)).Return(boom)

		det, err := New(mockStore)
		s.Require().NoError(err)
		_, err = det.DetectLatest(s.ctx)
		s.ErrorIs(err, boom)
		s.Contains(err.Error(), "save changes for run 2")
	})

	s.Run("no upsert when nothing changed", func() {
		ctrl := gomock.NewController(s.T())
		mockStore := mocks.NewMockStore(ctrl)
		mockStore.EXPECT().LatestRunPair(gomock.Any()).Return(pair, true, nil)
		mockStore.EXPECT().ServicesForRun(gomock.Any(), gomock.Any()).Return([]models.Service{svc("k1", "HR", granted)}, nil).Times(2)

		det, err := New(mockStore)
		s.Require().NoError(err)
		result, err := det.DetectLatest(s.ctx)
		s.Require().NoError(err)
		s.True(result.Compared)
		s.Empty(result.Changes)
	})
}
