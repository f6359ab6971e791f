package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tlwatch/internal/trustlist/models"
	"tlwatch/pkg/platform/sentinel"
	txcontext "tlwatch/pkg/platform/tx"
)

// SQLStore persists snapshots in Postgres or SQLite. Rows are append-only per run;
// change and quality results are upserted by their natural keys.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewPostgresStore constructs a store over a lib/pq connection.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: Postgres}
}

// NewSQLiteStore constructs a store over a modernc.org/sqlite connection.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: SQLite}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLStore) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

// ApplySchema creates the tables if they do not exist.
func (s *SQLStore) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("apply %s schema: %w", s.dialect.Name, err)
	}
	return nil
}

// StartRun records a new run as ok. The status is optimistic and is settled by FinishRun.
func (s *SQLStore) StartRun(ctx context.Context, startedAt time.Time) (int64, error) {
	query := `INSERT INTO runs (started_at, status) VALUES ($1, $2) RETURNING run_id`
	var runID int64
	err := s.execer(ctx).QueryRowContext(ctx, s.q(query), startedAt, string(models.RunStatusOK)).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// FinishRun settles a run's final status. A run can be finished only once.
func (s *SQLStore) FinishRun(ctx context.Context, runID int64, status models.RunStatus, notes string, finishedAt time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("finish run %d: unknown status %q: %w", runID, status, sentinel.ErrInvalidState)
	}
	query := `
		UPDATE runs SET finished_at = $1, status = $2, notes = $3
		WHERE run_id = $4 AND finished_at IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, s.q(query), finishedAt, string(status), nullString(notes), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return fmt.Errorf("finish run %d: already finished: %w", runID, sentinel.ErrInvalidState)
}

const runColumns = `run_id, started_at, finished_at, status, notes`

func scanRun(row interface{ Scan(...any) error }) (models.Run, error) {
	var (
		run      models.Run
		finished sql.NullTime
		status   string
		notes    sql.NullString
	)
	if err := row.Scan(&run.RunID, &run.StartedAt, &finished, &status, &notes); err != nil {
		return models.Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	run.Status = models.RunStatus(status)
	run.Notes = notes.String
	return run, nil
}

func (s *SQLStore) GetRun(ctx context.Context, runID int64) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`
	run, err := scanRun(s.execer(ctx).QueryRowContext(ctx, s.q(query), runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY run_id DESC LIMIT $1`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *SQLStore) InsertSource(ctx context.Context, src models.Source) error {
	query := `
		INSERT INTO sources (run_id, source_type, country_code, url, fetched_at, sha256, bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, s.q(query),
		src.RunID,
		string(src.SourceType),
		nullString(src.CountryCode),
		src.URL,
		src.FetchedAt,
		src.SHA256,
		src.Bytes,
	)
	if err != nil {
		return fmt.Errorf("insert source %s: %w", src.URL, err)
	}
	return nil
}

func (s *SQLStore) SourcesForRun(ctx context.Context, runID int64) ([]models.Source, error) {
	query := `
		SELECT run_id, source_type, country_code, url, fetched_at, sha256, bytes
		FROM sources WHERE run_id = $1 ORDER BY source_id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, fmt.Errorf("list sources for run %d: %w", runID, err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var (
			src        models.Source
			sourceType string
			country    sql.NullString
		)
		if err := rows.Scan(&src.RunID, &sourceType, &country, &src.URL, &src.FetchedAt, &src.SHA256, &src.Bytes); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.SourceType = models.SourceType(sourceType)
		src.CountryCode = country.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SaveSnapshot writes a run's providers and services in one transaction. Keys
// already present for the run are left untouched.
func (s *SQLStore) SaveSnapshot(ctx context.Context, runID int64, providers []models.Provider, services []models.Service) error {
	providerQuery := s.q(`
		INSERT INTO tsp_providers (run_id, provider_key, country_code, tsp_name, tsp_uri)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, provider_key) DO NOTHING
	`)
	serviceQuery := s.q(`
		INSERT INTO tsp_services (
			run_id, service_key, provider_key, country_code,
			service_type_identifier, service_name, current_status, status_starting_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, service_key) DO NOTHING
	`)

	return s.runInTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)
		for _, p := range providers {
			if _, err := exec.ExecContext(ctx, providerQuery,
				runID, p.ProviderKey, p.CountryCode, p.Name, p.InformationURI,
			); err != nil {
				return fmt.Errorf("insert provider %s: %w", p.ProviderKey, err)
			}
		}
		for _, svc := range services {
			if _, err := exec.ExecContext(ctx, serviceQuery,
				runID, svc.ServiceKey, svc.ProviderKey, svc.CountryCode,
				svc.ServiceTypeIdentifier, svc.ServiceName, svc.CurrentStatus, svc.StatusStartingTime,
			); err != nil {
				return fmt.Errorf("insert service %s: %w", svc.ServiceKey, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ProvidersForRun(ctx context.Context, runID int64) ([]models.Provider, error) {
	query := `
		SELECT provider_key, country_code, tsp_name, tsp_uri
		FROM tsp_providers WHERE run_id = $1
		ORDER BY country_code, provider_key
	`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, fmt.Errorf("list providers for run %d: %w", runID, err)
	}
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ProviderKey, &p.CountryCode, &p.Name, &p.InformationURI); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (s *SQLStore) ServicesForRun(ctx context.Context, runID int64) ([]models.Service, error) {
	query := `
		SELECT service_key, provider_key, country_code, service_type_identifier,
		       service_name, current_status, status_starting_time
		FROM tsp_services WHERE run_id = $1
		ORDER BY country_code, service_key
	`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, fmt.Errorf("list services for run %d: %w", runID, err)
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(
			&svc.ServiceKey, &svc.ProviderKey, &svc.CountryCode, &svc.ServiceTypeIdentifier,
			&svc.ServiceName, &svc.CurrentStatus, &svc.StatusStartingTime,
		); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// LatestRunPair returns the two highest successful run ids.
func (s *SQLStore) LatestRunPair(ctx context.Context) (models.RunPair, bool, error) {
	query := `SELECT run_id FROM runs WHERE status = $1 ORDER BY run_id DESC LIMIT 2`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), string(models.RunStatusOK))
	if err != nil {
		return models.RunPair{}, false, fmt.Errorf("latest run pair: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return models.RunPair{}, false, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return models.RunPair{}, false, fmt.Errorf("latest run pair: %w", err)
	}
	if len(ids) < 2 {
		return models.RunPair{}, false, nil
	}
	return models.RunPair{Previous: ids[1], Current: ids[0]}, true, nil
}

// UpsertChanges writes change records keyed by (run_id, change_type, entity_key).
func (s *SQLStore) UpsertChanges(ctx context.Context, records []models.ChangeRecord) error {
	query := s.q(`
		INSERT INTO change_log (run_id, change_type, entity_key, country_code, old_value, new_value, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, change_type, entity_key) DO UPDATE SET
			country_code = EXCLUDED.country_code,
			old_value = EXCLUDED.old_value,
			new_value = EXCLUDED.new_value,
			detected_at = EXCLUDED.detected_at
	`)
	return s.runInTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)
		for _, r := range records {
			if _, err := exec.ExecContext(ctx, query,
				r.RunID, string(r.Kind), r.ServiceKey, r.CountryCode,
				nullStringPtr(r.OldValue), nullStringPtr(r.NewValue), r.DetectedAt,
			); err != nil {
				return fmt.Errorf("upsert change %s %s: %w", r.Kind, r.ServiceKey, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ChangesForRun(ctx context.Context, runID int64) ([]models.ChangeRecord, error) {
	query := `
		SELECT run_id, change_type, entity_key, country_code, old_value, new_value, detected_at
		FROM change_log WHERE run_id = $1
		ORDER BY change_type, entity_key
	`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, fmt.Errorf("list changes for run %d: %w", runID, err)
	}
	defer rows.Close()

	var records []models.ChangeRecord
	for rows.Next() {
		var (
			r              models.ChangeRecord
			kind           string
			oldVal, newVal sql.NullString
		)
		if err := rows.Scan(&r.RunID, &kind, &r.ServiceKey, &r.CountryCode, &oldVal, &newVal, &r.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		r.Kind = models.ChangeKind(kind)
		r.OldValue = stringPtr(oldVal)
		r.NewValue = stringPtr(newVal)
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertDQResults writes rule results keyed by (run_id, rule_id).
func (s *SQLStore) UpsertDQResults(ctx context.Context, results []models.DQResult) error {
	query := s.q(`
		INSERT INTO dq_results (run_id, rule_id, rule_description, severity, failed_count, sample_keys, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, rule_id) DO UPDATE SET
			rule_description = EXCLUDED.rule_description,
			severity = EXCLUDED.severity,
			failed_count = EXCLUDED.failed_count,
			sample_keys = EXCLUDED.sample_keys,
			created_at = EXCLUDED.created_at
	`)
	return s.runInTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)
		for _, r := range results {
			keys := r.SampleKeys
			if keys == nil {
				keys = []string{}
			}
			if _, err := exec.ExecContext(ctx, query,
				r.RunID, r.RuleID, r.Description, string(r.Severity),
				r.FailedCount, s.dialect.keysArg(keys), r.CreatedAt,
			); err != nil {
				return fmt.Errorf("upsert dq result %s: %w", r.RuleID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) DQResultsForRun(ctx context.Context, runID int64) ([]models.DQResult, error) {
	query := `
		SELECT run_id, rule_id, rule_description, severity, failed_count, sample_keys, created_at
		FROM dq_results WHERE run_id = $1
		ORDER BY rule_id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, s.q(query), runID)
	if err != nil {
		return nil, fmt.Errorf("list dq results for run %d: %w", runID, err)
	}
	defer rows.Close()

	var results []models.DQResult
	for rows.Next() {
		var (
			r        models.DQResult
			severity string
		)
		if err := rows.Scan(
			&r.RunID, &r.RuleID, &r.Description, &severity,
			&r.FailedCount, s.dialect.keysDest(&r.SampleKeys), &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dq result: %w", err)
		}
		r.Severity = models.Severity(severity)
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
