package sources

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for source operations
var (
	ErrSourceNotFound = errors.New("source not found")
)

// SourceStore tracks the operational status of sources and their run
// history using SQLite. The source definitions themselves live in the
// catalog; this store only knows ids, names and outcomes.
type SourceStore struct {
	db *sql.DB
}

// SourceStatus is the operational state of one source.
type SourceStatus struct {
	SourceID        string     `json:"source_id"`
	Name            string     `json:"name"`
	Enabled         bool       `json:"enabled"`
	DisabledReason  *string    `json:"disabled_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt   *time.Time `json:"last_success_at,omitempty"`
	FetchErrorCount int        `json:"fetch_error_count"`
	LastError       *string    `json:"last_error,omitempty"`
	LastNewItems    int        `json:"last_new_items"`
	TotalItems      int        `json:"total_items"`
}

// RunRecord is one entry of the run log.
type RunRecord struct {
	RunID         uuid.UUID `json:"run_id"`
	SourceID      string    `json:"source_id"`
	SourceName    string    `json:"-"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Targets       int       `json:"targets"`
	TargetsFailed int       `json:"targets_failed"`
	NewItems      int       `json:"new_items"`
	Duplicates    int       `json:"duplicates"`
	Errors        int       `json:"errors"`
	LastError     *string   `json:"last_error,omitempty"`
	// Failed marks a run in which no target could be fetched.
	Failed bool `json:"failed"`
}

// NewSourceStore creates a new source store with the given database path.
func NewSourceStore(dbPath string) (*SourceStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	store := &SourceStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *SourceStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		source_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		disabled_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_run_at TEXT,
		last_success_at TEXT,
		fetch_error_count INTEGER DEFAULT 0,
		last_error TEXT,
		last_new_items INTEGER DEFAULT 0,
		total_items INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		targets INTEGER DEFAULT 0,
		targets_failed INTEGER DEFAULT 0,
		new_items INTEGER DEFAULT 0,
		duplicates INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		last_error TEXT,
		failed INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS runs_by_source ON runs (source_id, started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

// EnsureSource registers a source, or refreshes its name if it is already
// known. Existing status is kept.
func (s *SourceStore) EnsureSource(sourceID, name string) error {
	now := time.Now()
	query := `
		INSERT INTO sources (source_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET name = excluded.name
	`
	if _, err := s.db.Exec(query, sourceID, name, formatTime(&now), formatTime(&now)); err != nil {
		return fmt.Errorf("failed to register source: %w", err)
	}
	return nil
}

// GetStatus retrieves a source's status by id.
func (s *SourceStore) GetStatus(sourceID string) (*SourceStatus, error) {
	row := s.db.QueryRow(selectStatus+` WHERE source_id = ?`, sourceID)
	status, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return status, nil
}

// ListStatus returns every known source ordered by id.
func (s *SourceStore) ListStatus() ([]SourceStatus, error) {
	rows, err := s.db.Query(selectStatus + ` ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	statuses := []SourceStatus{}
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		statuses = append(statuses, *status)
	}
	return statuses, rows.Err()
}

// IsEnabled reports whether a source may run. Unknown sources are enabled.
func (s *SourceStore) IsEnabled(sourceID string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(`SELECT enabled FROM sources WHERE source_id = ?`, sourceID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query source: %w", err)
	}
	return enabled, nil
}

// SetEnabled enables or disables a source. Enabling clears the failure
// count so the auto-disable threshold starts over.
func (s *SourceStore) SetEnabled(sourceID string, enabled bool, reason string) error {
	now := time.Now()

	var query string
	var args []any
	if enabled {
		query = `UPDATE sources SET enabled = 1, disabled_reason = NULL, fetch_error_count = 0, updated_at = ? WHERE source_id = ?`
		args = []any{formatTime(&now), sourceID}
	} else {
		query = `UPDATE sources SET enabled = 0, disabled_reason = ?, updated_at = ? WHERE source_id = ?`
		args = []any{nullString(reason), formatTime(&now), sourceID}
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// RecordRun appends run to the log and updates the source's status. When
// the run failed and the consecutive failure count reaches
// disableThreshold (if positive), the source is disabled and true is
// returned.
func (s *SourceStore) RecordRun(run RunRecord, disableThreshold int) (bool, error) {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	name := run.SourceName
	if name == "" {
		name = run.SourceID
	}
	if _, err := tx.Exec(`
		INSERT INTO sources (source_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id) DO NOTHING
	`, run.SourceID, name, formatTime(&now), formatTime(&now)); err != nil {
		return false, fmt.Errorf("failed to register source: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO runs (
			run_id, source_id, started_at, finished_at, targets, targets_failed,
			new_items, duplicates, errors, last_error, failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID.String(),
		run.SourceID,
		formatTime(&run.StartedAt),
		formatTime(&run.FinishedAt),
		run.Targets,
		run.TargetsFailed,
		run.NewItems,
		run.Duplicates,
		run.Errors,
		run.LastError,
		run.Failed,
	); err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}

	disabled := false
	if run.Failed {
		var count int
		if err := tx.QueryRow(`SELECT fetch_error_count FROM sources WHERE source_id = ?`, run.SourceID).Scan(&count); err != nil {
			return false, fmt.Errorf("failed to read error count: %w", err)
		}
		count++
		disabled = disableThreshold > 0 && count >= disableThreshold

		query := `UPDATE sources SET last_run_at = ?, fetch_error_count = ?, last_error = ?, last_new_items = 0, updated_at = ? WHERE source_id = ?`
		args := []any{formatTime(&run.FinishedAt), count, run.LastError, formatTime(&now), run.SourceID}
		if disabled {
			query = `UPDATE sources SET last_run_at = ?, fetch_error_count = ?, last_error = ?, last_new_items = 0, updated_at = ?,
				enabled = 0, disabled_reason = ? WHERE source_id = ?`
			reason := fmt.Sprintf("auto-disabled after %d consecutive failed runs", count)
			args = []any{formatTime(&run.FinishedAt), count, run.LastError, formatTime(&now), reason, run.SourceID}
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return false, fmt.Errorf("failed to update source: %w", err)
		}
	} else {
		if _, err := tx.Exec(`
			UPDATE sources SET last_run_at = ?, last_success_at = ?, fetch_error_count = 0,
				last_error = ?, last_new_items = ?, total_items = total_items + ?, updated_at = ?
			WHERE source_id = ?
		`,
			formatTime(&run.FinishedAt),
			formatTime(&run.FinishedAt),
			run.LastError,
			run.NewItems,
			run.NewItems,
			formatTime(&now),
			run.SourceID,
		); err != nil {
			return false, fmt.Errorf("failed to update source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit run: %w", err)
	}
	return disabled, nil
}

// ListRuns returns the most recent runs of a source, newest first. A limit
// of zero or less returns every run.
func (s *SourceStore) ListRuns(sourceID string, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, source_id, started_at, finished_at, targets, targets_failed,
		       new_items, duplicates, errors, last_error, failed
		FROM runs
		WHERE source_id = ?
		ORDER BY started_at DESC
	`
	args := []any{sourceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var run RunRecord
		var runID, startedAt, finishedAt string
		var lastError sql.NullString
		if err := rows.Scan(
			&runID, &run.SourceID, &startedAt, &finishedAt, &run.Targets, &run.TargetsFailed,
			&run.NewItems, &run.Duplicates, &run.Errors, &lastError, &run.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.RunID, err = uuid.Parse(runID)
		if err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
		}
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt)
		if lastError.Valid {
			run.LastError = &lastError.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectStatus = `
	SELECT source_id, name, enabled, disabled_reason, created_at, updated_at,
	       last_run_at, last_success_at, fetch_error_count, last_error,
	       last_new_items, total_items
	FROM sources
`

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(row scanner) (*SourceStatus, error) {
	var status SourceStatus
	var createdAt, updatedAt string
	var disabledReason, lastRunAt, lastSuccessAt, lastError sql.NullString

	if err := row.Scan(
		&status.SourceID, &status.Name, &status.Enabled, &disabledReason,
		&createdAt, &updatedAt, &lastRunAt, &lastSuccessAt,
		&status.FetchErrorCount, &lastError, &status.LastNewItems, &status.TotalItems,
	); err != nil {
		return nil, err
	}

	status.CreatedAt = parseTime(createdAt)
	status.UpdatedAt = parseTime(updatedAt)

	// Parse optional fields
	if disabledReason.Valid {
		status.DisabledReason = &disabledReason.String
	}
	if lastRunAt.Valid {
		t := parseTime(lastRunAt.String)
		status.LastRunAt = &t
	}
	if lastSuccessAt.Valid {
		t := parseTime(lastSuccessAt.String)
		status.LastSuccessAt = &t
	}
	if lastError.Valid {
		status.LastError = &lastError.String
	}

	return &status, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	// Strip monotonic clock for consistent storage and comparisons
	return t.Truncate(0).UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	// Strip monotonic clock for consistent comparisons
	return t.Truncate(0)
}
