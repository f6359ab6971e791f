package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tlwatch/internal/trustlist/models"
	"tlwatch/pkg/platform/sentinel"
)

type runData struct {
	run       models.Run
	sources   []models.Source
	providers []models.Provider
	services  []models.Service
	changes   map[string]models.ChangeRecord
	dq        map[string]models.DQResult
}

// InMemoryStore keeps every run in process memory. It backs tests and one-off
// parsing where no database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	runs   map[int64]*runData
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[int64]*runData)}
}

func (s *InMemoryStore) StartRun(_ context.Context, startedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.runs[s.nextID] = &runData{
		run:     models.Run{RunID: s.nextID, StartedAt: startedAt, Status: models.RunStatusOK},
		changes: make(map[string]models.ChangeRecord),
		dq:      make(map[string]models.DQResult),
	}
	return s.nextID, nil
}

func (s *InMemoryStore) FinishRun(_ context.Context, runID int64, status models.RunStatus, notes string, finishedAt time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("finish run %d: unknown status %q: %w", runID, status, sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("finish run %d: %w", runID, sentinel.ErrNotFound)
	}
	if rd.run.FinishedAt != nil {
		return fmt.Errorf("finish run %d: already finished: %w", runID, sentinel.ErrInvalidState)
	}
	rd.run.FinishedAt = &finishedAt
	rd.run.Status = status
	rd.run.Notes = notes
	return nil
}

func (s *InMemoryStore) GetRun(_ context.Context, runID int64) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	run := rd.run
	return &run, nil
}

func (s *InMemoryStore) ListRuns(_ context.Context, limit int) ([]models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]models.Run, 0, len(s.runs))
	for _, rd := range s.runs {
		runs = append(runs, rd.run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID > runs[j].RunID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *InMemoryStore) InsertSource(_ context.Context, src models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.runs[src.RunID]
	if !ok {
		return fmt.Errorf("insert source: run %d: %w", src.RunID, sentinel.ErrNotFound)
	}
	rd.sources = append(rd.sources, src)
	return nil
}

func (s *InMemoryStore) SourcesForRun(_ context.Context, runID int64) ([]models.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return append([]models.Source(nil), rd.sources...), nil
}

// SaveSnapshot appends providers and services to the run. Rows whose key already
// exists in the run are ignored.
func (s *InMemoryStore) SaveSnapshot(_ context.Context, runID int64, providers []models.Provider, services []models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("save snapshot: run %d: %w", runID, sentinel.ErrNotFound)
	}

	seenProviders := make(map[string]struct{}, len(rd.providers))
	for _, p := range rd.providers {
		seenProviders[p.ProviderKey] = struct{}{}
	}
	for _, p := range providers {
		if _, dup := seenProviders[p.ProviderKey]; dup {
			continue
		}
		seenProviders[p.ProviderKey] = struct{}{}
		rd.providers = append(rd.providers, p)
	}

	seenServices := make(map[string]struct{}, len(rd.services))
	for _, svc := range rd.services {
		seenServices[svc.ServiceKey] = struct{}{}
	}
	for _, svc := range services {
		if _, dup := seenServices[svc.ServiceKey]; dup {
			continue
		}
		seenServices[svc.ServiceKey] = struct{}{}
		rd.services = append(rd.services, svc)
	}
	return nil
}

func (s *InMemoryStore) ProvidersForRun(_ context.Context, runID int64) ([]models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return append([]models.Provider(nil), rd.providers...), nil
}

func (s *InMemoryStore) ServicesForRun(_ context.Context, runID int64) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	return append([]models.Service(nil), rd.services...), nil
}

func (s *InMemoryStore) LatestRunPair(_ context.Context) (models.RunPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest, previous int64
	for id, rd := range s.runs {
		if rd.run.Status != models.RunStatusOK {
			continue
		}
		switch {
		case id > newest:
			previous, newest = newest, id
		case id > previous:
			previous = id
		}
	}
	if previous == 0 {
		return models.RunPair{}, false, nil
	}
	return models.RunPair{Previous: previous, Current: newest}, true, nil
}

func (s *InMemoryStore) UpsertChanges(_ context.Context, records []models.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		rd, ok := s.runs[r.RunID]
		if !ok {
			return fmt.Errorf("upsert change: run %d: %w", r.RunID, sentinel.ErrNotFound)
		}
		rd.changes[r.NaturalKey()] = r
	}
	return nil
}

func (s *InMemoryStore) ChangesForRun(_ context.Context, runID int64) ([]models.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	out := make([]models.ChangeRecord, 0, len(rd.changes))
	for _, r := range rd.changes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey() < out[j].NaturalKey() })
	return out, nil
}

func (s *InMemoryStore) UpsertDQResults(_ context.Context, results []models.DQResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		rd, ok := s.runs[r.RunID]
		if !ok {
			return fmt.Errorf("upsert dq result: run %d: %w", r.RunID, sentinel.ErrNotFound)
		}
		r.SampleKeys = append([]string(nil), r.SampleKeys...)
		rd.dq[r.RuleID] = r
	}
	return nil
}

func (s *InMemoryStore) DQResultsForRun(_ context.Context, runID int64) ([]models.DQResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rd, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	out := make([]models.DQResult, 0, len(rd.dq))
	for _, r := range rd.dq {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}
