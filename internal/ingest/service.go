// Package ingest runs one ingestion cycle: fetch the LOTL and the selected
// Trusted Lists, normalize and persist the snapshot, then evaluate quality rules
// and detect changes against the previous run.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tlwatch/internal/changes"
	"tlwatch/internal/fetch"
	"tlwatch/internal/ingest/lock"
	"tlwatch/internal/ingest/metrics"
	"tlwatch/internal/ingest/ports"
	"tlwatch/internal/trustlist/models"
	"tlwatch/internal/trustlist/parser"
)

var tracer = otel.Tracer("tlwatch/ingest")

// CycleResult summarizes a finished cycle.
type CycleResult struct {
	CycleID   string
	RunID     int64
	Status    models.RunStatus
	Pointers  []models.Pointer
	Providers int
	Services  int
	Quality   []models.DQResult
	Changes   *changes.Result
}

type Service struct {
	store     ports.SnapshotStore
	fetcher   ports.DocumentFetcher
	quality   ports.QualityEngine
	detector  ports.ChangeDetector
	publisher ports.ChangePublisher
	lock      ports.CycleLock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time

	lotlURL     string
	countries   []string
	concurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher enables change publishing. Without it changes are only stored.
func WithPublisher(p ports.ChangePublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLock(l ports.CycleLock) Option {
	return func(s *Service) {
		if l != nil {
			s.lock = l
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithConcurrency bounds parallel Trusted List downloads.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(
	store ports.SnapshotStore,
	fetcher ports.DocumentFetcher,
	quality ports.QualityEngine,
	detector ports.ChangeDetector,
	lotlURL string,
	countries []string,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("document fetcher is required")
	}
	if quality == nil {
		return nil, fmt.Errorf("quality engine is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("change detector is required")
	}
	if lotlURL == "" {
		return nil, fmt.Errorf("lotl url is required")
	}
	s := &Service{
		store:       store,
		fetcher:     fetcher,
		quality:     quality,
		detector:    detector,
		lock:        lock.NewLocalLock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:       func() time.Time { return time.Now().UTC() },
		lotlURL:     lotlURL,
		countries:   countries,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunCycle executes one cycle under the cycle lock. Once a run has been started
// it is always finished: ok when every stage succeeded, failed with the error
// text as its note otherwise. The returned error is the stage error, if any.
func (s *Service) RunCycle(ctx context.Context) (*CycleResult, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("start cycle: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release cycle lock", "error", err)
		}
	}()

	result := &CycleResult{CycleID: uuid.NewString()}
	ctx, span := tracer.Start(ctx, "ingest.RunCycle",
		trace.WithAttributes(
			attribute.String("cycle_id", result.CycleID),
			attribute.StringSlice("countries", s.countries),
		),
	)
	defer span.End()
	logger := s.logger.With("cycle_id", result.CycleID)

	startedAt := s.clock()
	runID, err := s.store.StartRun(ctx, startedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start run")
		return nil, fmt.Errorf("start run: %w", err)
	}
	result.RunID = runID
	span.SetAttributes(attribute.Int64("run_id", runID))
	logger.InfoContext(ctx, "run started", "run_id", runID, "countries", s.countries)

	stageErr := s.runStages(ctx, logger, result)

	result.Status = models.RunStatusOK
	notes := "countries: " + strings.Join(s.countries, ",")
	if stageErr != nil {
		result.Status = models.RunStatusFailed
		notes = stageErr.Error()
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, "cycle failed")
	}

	finishedAt := s.clock()
	if err := s.store.FinishRun(context.WithoutCancel(ctx), runID, result.Status, notes, finishedAt); err != nil {
		logger.ErrorContext(ctx, "failed to finish run", "run_id", runID, "error", err)
		return result, errors.Join(stageErr, fmt.Errorf("finish run %d: %w", runID, err))
	}
	s.metrics.ObserveCycle(string(result.Status), finishedAt.Sub(startedAt), finishedAt)

	if stageErr != nil {
		logger.ErrorContext(ctx, "run failed", "run_id", runID, "error", stageErr)
		return result, stageErr
	}
	logger.InfoContext(ctx, "run finished",
		"run_id", runID,
		"providers", result.Providers,
		"services", result.Services,
		"duration", finishedAt.Sub(startedAt).String(),
	)
	return result, nil
}

func (s *Service) runStages(ctx context.Context, logger *slog.Logger, result *CycleResult) error {
	pointers, err := s.loadPointers(ctx, result.RunID)
	if err != nil {
		return err
	}
	result.Pointers = pointers

	lists, err := s.loadTrustedLists(ctx, result.RunID, pointers)
	if err != nil {
		return err
	}

	// Merge is serial and in pointer order so that first-seen-wins is stable.
	acc := parser.NewAccumulator()
	perCountry := make(map[string]int)
	for _, tl := range lists {
		acc.Merge(tl)
	}
	providers, services := acc.Result()
	for _, svc := range services {
		perCountry[svc.CountryCode]++
	}
	if err := s.saveSnapshot(ctx, result.RunID, providers, services); err != nil {
		return err
	}
	result.Providers, result.Services = len(providers), len(services)
	for cc, n := range perCountry {
		s.metrics.SetServices(cc, n)
	}

	dq, err := s.evaluateQuality(ctx, result.RunID)
	if err != nil {
		return err
	}
	result.Quality = dq

	detected, err := s.detectChanges(ctx)
	if err != nil {
		return err
	}
	result.Changes = detected

	if s.publisher != nil && len(detected.Changes) > 0 {
		if err := s.publisher.Publish(ctx, detected.Changes); err != nil {
			s.metrics.IncPublishFailures()
			logger.WarnContext(ctx, "failed to publish changes",
				"run_id", result.RunID,
				"changes", len(detected.Changes),
				"error", err,
			)
		}
	}
	return nil
}

// loadPointers fetches and records the LOTL and returns the pointers to fetch.
func (s *Service) loadPointers(ctx context.Context, runID int64) ([]models.Pointer, error) {
	ctx, span := tracer.Start(ctx, "ingest.loadPointers")
	defer span.End()

	doc, err := s.fetch(ctx, runID, models.SourceTypeLOTL, "", s.lotlURL)
	if err != nil {
		return nil, err
	}
	all, err := parser.DecodeLOTL(bytes.NewReader(doc.Body), doc.Source.URL)
	if err != nil {
		return nil, err
	}
	pointers := XMLPointers(parser.FilterCountries(all, s.countries))
	span.SetAttributes(attribute.Int("pointers", len(pointers)))
	s.logger.InfoContext(ctx, "lotl parsed", "run_id", runID, "pointers", len(all), "selected", len(pointers))
	return pointers, nil
}

// loadTrustedLists downloads and parses each pointer concurrently. Results are
// returned in pointer order; sources are recorded for every document downloaded,
// even when another download fails.
func (s *Service) loadTrustedLists(ctx context.Context, runID int64, pointers []models.Pointer) ([]*parser.TrustedList, error) {
	ctx, span := tracer.Start(ctx, "ingest.loadTrustedLists",
		trace.WithAttributes(attribute.Int("pointers", len(pointers))),
	)
	defer span.End()

	lists := make([]*parser.TrustedList, len(pointers))
	docs := make([]*fetch.Document, len(pointers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range pointers {
		g.Go(func() error {
			doc, err := s.download(gctx, models.SourceTypeTL, p.CountryCode, p.TLURL)
			if err != nil {
				return err
			}
			docs[i] = doc
			tl, err := parser.DecodeTrustedList(bytes.NewReader(doc.Body), p.TLURL, p.CountryCode)
			if err != nil {
				return err
			}
			lists[i] = tl
			return nil
		})
	}
	fetchErr := g.Wait()

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if err := s.recordSource(ctx, runID, doc.Source); err != nil {
			return nil, errors.Join(fetchErr, err)
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return lists, nil
}

func (s *Service) saveSnapshot(ctx context.Context, runID int64, providers []models.Provider, services []models.Service) error {
	ctx, span := tracer.Start(ctx, "ingest.saveSnapshot",
		trace.WithAttributes(
			attribute.Int("providers", len(providers)),
			attribute.Int("services", len(services)),
		),
	)
	defer span.End()

	if err := s.store.SaveSnapshot(ctx, runID, providers, services); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Service) evaluateQuality(ctx context.Context, runID int64) ([]models.DQResult, error) {
	ctx, span := tracer.Start(ctx, "ingest.evaluateQuality")
	defer span.End()

	results, err := s.quality.Run(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("quality checks: %w", err)
	}
	for _, r := range results {
		s.metrics.SetQualityFailures(r.RuleID, string(r.Severity), r.FailedCount)
	}
	return results, nil
}

func (s *Service) detectChanges(ctx context.Context) (*changes.Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.detectChanges")
	defer span.End()

	result, err := s.detector.DetectLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect changes: %w", err)
	}
	for kind, n := range changes.Summary(result.Changes) {
		s.metrics.AddChanges(string(kind), n)
	}
	span.SetAttributes(attribute.Int("changes", len(result.Changes)))
	return result, nil
}

// fetch downloads a document and records it as a source of runID.
func (s *Service) fetch(ctx context.Context, runID int64, kind models.SourceType, countryCode, url string) (*fetch.Document, error) {
	doc, err := s.download(ctx, kind, countryCode, url)
	if err != nil {
		return nil, err
	}
	if err := s.recordSource(ctx, runID, doc.Source); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) download(ctx context.Context, kind models.SourceType, countryCode, url string) (*fetch.Document, error) {
	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, kind, countryCode, url)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveFetch(string(kind), time.Since(start), doc.Source.Bytes)
	return doc, nil
}

func (s *Service) recordSource(ctx context.Context, runID int64, src models.Source) error {
	src.RunID = runID
	if err := s.store.InsertSource(ctx, src); err != nil {
		return fmt.Errorf("record source %s: %w", src.URL, err)
	}
	return nil
}

// XMLPointers drops pointers to the human-readable PDF rendition that the LOTL
// publishes next to each machine-readable list.
func XMLPointers(pointers []models.Pointer) []models.Pointer {
	out := make([]models.Pointer, 0, len(pointers))
	for _, p := range pointers {
		if strings.HasSuffix(strings.ToLower(p.TLURL), ".pdf") {
			continue
		}
		out = append(out, p)
	}
	return out
}
