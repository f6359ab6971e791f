package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tlwatch/internal/quality/mocks"
	"tlwatch/internal/snapshot/store"
	"tlwatch/internal/trustlist/models"
)

// =============================================================================
// Engine Test Suite
// =============================================================================
// Justification for unit tests: the engine is re-run when a cycle is retried.
// Tests pin idempotent persistence, custom rule sets and store error wrapping.

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineSuite) TestNew() {
	s.Run("nil store", func() {
		_, err := New(nil)
		s.EqualError(err, "quality store is required")
	})

	s.Run("incomplete rule", func() {
		_, err := New(s.mockStore, WithRules(Rule{ID: "R9"}))
		s.ErrorContains(err, `quality rule "R9" is incomplete`)
	})
}

func (s *EngineSuite) TestRunIsIdempotent() {
	mem := store.NewInMemoryStore()
	runID, err := mem.StartRun(s.ctx, s.now)
	s.Require().NoError(err)

	missing := completeService("b")
	missing.ServiceTypeIdentifier = ""
	s.Require().NoError(mem.SaveSnapshot(s.ctx, runID, nil, []models.Service{completeService("a"), missing}))

	engine, err := New(mem, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	for i := 0; i < 2; i++ {
		results, err := engine.Run(s.ctx, runID)
		s.Require().NoError(err)
		s.Len(results, 3)
	}

	stored, err := mem.DQResultsForRun(s.ctx, runID)
	s.Require().NoError(err)
	s.Require().Len(stored, 3)
	s.Equal("R1", stored[0].RuleID)
	s.Equal(1, stored[0].FailedCount)
	s.Equal([]string{"b"}, stored[0].SampleKeys)
}

func (s *EngineSuite) TestCustomRules() {
	rule := Rule{
		ID:          "R9",
		Description: "ServiceName should not be empty",
		Severity:    models.SeverityWarn,
		Fails:       func(svc models.Service) bool { return svc.ServiceName == "" },
	}
	s.mockStore.EXPECT().ServicesForRun(gomock.Any(), int64(3)).Return([]models.Service{completeService("a")}, nil)
	s.mockStore.EXPECT().UpsertDQResults(gomock.Any(), gomock.Len(1)).Return(nil)

	engine, err := New(s.mockStore, WithRules(rule))
	s.Require().NoError(err)
	results, err := engine.Run(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal("R9", results[0].RuleID)
	s.Equal(1, results[0].FailedCount)
}

func (s *EngineSuite) TestStoreErrors() {
	boom := errors.New("database unavailable")

	s.Run("load", func() {
		s.mockStore.EXPECT().ServicesForRun(gomock.Any(), int64(3)).Return(nil, boom)
		engine, err := New(s.mockStore)
		s.Require().NoError(err)
		_, err = engine.Run(s.ctx, 3)
		s.ErrorIs(err, boom)
	})

	s.Run("save", func() {
		s.mockStore.EXPECT().ServicesForRun(gomock.Any(), int64(3)).Return(nil, nil)
		s.mockStore.EXPECT().UpsertDQResults(gomock.Any(), gomock.Len(3)).Return(boom)
		engine, err := New(s.mockStore)
		s.Require().NoError(err)
		_, err = engine.Run(s.ctx, 3)
		s.ErrorIs(err, boom)
		s.Contains(err.Error(), "save dq results for run 3")
	})
}
