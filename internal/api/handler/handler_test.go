package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"tlwatch/internal/changes"
	"tlwatch/internal/snapshot/store"
	"tlwatch/internal/trustlist/models"
	"tlwatch/pkg/testutil"
)

const (
	granted   = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/granted"
	withdrawn = "http://uri.etsi.org/TrstSvc/TrustedList/Svcstatus/withdrawn"
)

// =============================================================================
// Query API Test Suite
// =============================================================================
// Justification for unit tests: the API is the only consumer-facing view of
// stored runs. Route parameters, error codes and status labels are checked
// against a real in-memory store.

type HandlerSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	mem    *store.InMemoryStore
	router http.Handler
	runs   []int64
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.mem = store.NewInMemoryStore()
	s.runs = nil

	snapshots := [][]models.Service{
		{
			{ServiceKey: "k1", CountryCode: "HR", ServiceName: "Fina RDC", CurrentStatus: granted},
			{ServiceKey: "k2", CountryCode: "SI", ServiceName: "SIGEN-CA", CurrentStatus: granted},
		},
		{
			{ServiceKey: "k1", CountryCode: "HR", ServiceName: "Fina RDC", CurrentStatus: withdrawn},
			{ServiceKey: "k2", CountryCode: "SI", ServiceName: "SIGEN-CA", CurrentStatus: granted},
		},
	}
	for _, services := range snapshots {
		runID, err := s.mem.StartRun(s.ctx, s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.mem.SaveSnapshot(s.ctx, runID, nil, services))
		s.Require().NoError(s.mem.FinishRun(s.ctx, runID, models.RunStatusOK, "countries: HR,SI", s.now))
		s.runs = append(s.runs, runID)
	}

	detector, err := changes.New(s.mem, changes.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	_, err = detector.DetectLatest(s.ctx)
	s.Require().NoError(err)

	s.router = s.newRouter(nil)
}

func (s *HandlerSuite) newRouter(checks map[string]HealthCheck) http.Handler {
	h := New(s.mem, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), checks)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (s *HandlerSuite) get(path string, out any) int {
	rec := testutil.Get(s.router, path)
	if out != nil {
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(out), "decode %s", path)
	}
	return rec.Code
}

// =============================================================================
// Runs
// =============================================================================

func (s *HandlerSuite) TestListRuns() {
	var resp RunsResponse
	s.Equal(http.StatusOK, s.get("/runs", &resp))
	s.Require().Len(resp.Runs, 2)
	s.Equal(s.runs[1], resp.Runs[0].RunID, "newest first")
	s.Equal("ok", resp.Runs[0].Status)

	s.Equal(http.StatusOK, s.get("/runs?limit=1", &resp))
	s.Len(resp.Runs, 1)
}

func (s *HandlerSuite) TestListRunsRejectsBadLimit() {
	for _, limit := range []string{"0", "-1", "abc", "501"} {
		testutil.AssertStatusAndError(s.T(), testutil.Get(s.router, "/runs?limit="+limit), http.StatusBadRequest, "bad_request")
	}
}

func (s *HandlerSuite) TestLatestRun() {
	var resp RunResponse
	s.Equal(http.StatusOK, s.get("/runs/latest", &resp))
	s.Equal(s.runs[1], resp.RunID)
	s.Equal("countries: HR,SI", resp.Notes)
}

func (s *HandlerSuite) TestLatestRunWithoutRuns() {
	s.mem = store.NewInMemoryStore()
	s.router = s.newRouter(nil)

	testutil.AssertStatusAndError(s.T(), testutil.Get(s.router, "/runs/latest"), http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestGetRun() {
	s.Run("unknown run", func() {
		testutil.AssertStatusAndError(s.T(), testutil.Get(s.router, "/runs/999"), http.StatusNotFound, "not_found")
	})
	s.Run("non numeric id", func() {
		testutil.AssertStatusAndError(s.T(), testutil.Get(s.router, "/runs/latest-ish"), http.StatusBadRequest, "bad_request")
	})
	s.Run("known run", func() {
		var resp RunResponse
		s.Equal(http.StatusOK, s.get("/runs/1", &resp))
		s.Equal(int64(1), resp.RunID)
		s.NotNil(resp.FinishedAt)
	})
}

// =============================================================================
// Snapshot views
// =============================================================================

func (s *HandlerSuite) TestServicesCarryLabels() {
	var resp ServicesResponse
	s.Equal(http.StatusOK, s.get("/runs/2/services", &resp))
	s.Require().Len(resp.Services, 2)
	s.Equal(withdrawn, resp.Services[0].CurrentStatus, "stored value stays verbatim")
	s.Equal("WITHDRAWN", resp.Services[0].StatusLabel)

	s.Equal(http.StatusOK, s.get("/runs/2/services?country=SI", &resp))
	s.Require().Len(resp.Services, 1)
	s.Equal("k2", resp.Services[0].ServiceKey)
}

func (s *HandlerSuite) TestChanges() {
	var resp ChangesResponse
	s.Equal(http.StatusOK, s.get("/runs/2/changes", &resp))
	s.Require().Len(resp.Changes, 1)
	change := resp.Changes[0]
	s.Equal("status_changed", change.ChangeType)
	s.Equal("k1", change.ServiceKey)
	s.Equal("GRANTED", change.OldStatusLabel)
	s.Equal("WITHDRAWN", change.NewStatusLabel)
	s.Equal(1, resp.Summary["status_changed"])

	s.Equal(http.StatusOK, s.get("/runs/1/changes", &resp))
	s.Empty(resp.Changes)
}

func (s *HandlerSuite) TestDQAndSourcesAreNeverNull() {
	var dq map[string]json.RawMessage
	s.Equal(http.StatusOK, s.get("/runs/1/dq", &dq))
	s.JSONEq(`[]`, string(dq["results"]))

	var sources map[string]json.RawMessage
	s.Equal(http.StatusOK, s.get("/runs/1/sources", &sources))
	s.JSONEq(`[]`, string(sources["sources"]))
}

// =============================================================================
// Health
// =============================================================================

func (s *HandlerSuite) TestHealth() {
	s.router = s.newRouter(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	var body map[string]string
	s.Equal(http.StatusOK, s.get("/healthz", &body))
	s.Equal("ok", body["database"])

	s.router = s.newRouter(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	s.Equal(http.StatusServiceUnavailable, s.get("/healthz", &body))
	s.Equal("unavailable", body["redis"])
}
