package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"photosync/internal/database/migrations"
	"photosync/internal/photosync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements photosync.History using SQLite.
type SQLiteHistory struct {
	db    *sql.DB
	path  string
	clock photosync.Clock
	ids   photosync.IDGenerator
}

// NewSQLiteHistory opens the database at path, applies pending migrations
// and returns a ready History. path can be a file path or ":memory:".
// nil clock and ids fall back to the real clock and random UUIDs.
func NewSQLiteHistory(path string, clock photosync.Clock, ids photosync.IDGenerator) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	h := NewSQLiteHistoryFromDB(db, clock, ids)
	h.path = path
	return h, nil
}

// NewSQLiteHistoryFromDB wraps an existing database connection.
// The caller is responsible for ensuring the schema is current.
func NewSQLiteHistoryFromDB(db *sql.DB, clock photosync.Clock, ids photosync.IDGenerator) *SQLiteHistory {
	if clock == nil {
		clock = photosync.RealClock{}
	}
	if ids == nil {
		ids = photosync.UUIDGenerator{}
	}
	return &SQLiteHistory{db: db, clock: clock, ids: ids}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would be a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run tracking

func (s *SQLiteHistory) CreateRun(operation, parameters string) (*photosync.Run, error) {
	run := &photosync.Run{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.clock.Now(),
		Status:     "running",
	}
	res, err := s.db.Exec(
		`INSERT INTO sync_runs (operation, parameters, started_at, status) VALUES (?, ?, ?, ?)`,
		run.Operation, run.Parameters, run.StartedAt, run.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	run.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading run id: %w", err)
	}
	return run, nil
}

func (s *SQLiteHistory) FinishRun(id int64, status string) error {
	res, err := s.db.Exec(
		`UPDATE sync_runs SET finished_at = ?, status = ? WHERE id = ?`,
		sql.NullTime{Time: s.clock.Now(), Valid: true}, status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run: no run with id %d", id)
	}
	return nil
}

func (s *SQLiteHistory) ListRuns(limit int) ([]*photosync.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM sync_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*photosync.Run
	for rows.Next() {
		var r photosync.Run
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &r.StartedAt, &r.FinishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Directory results

func (s *SQLiteHistory) RecordDirectory(runID int64, report *photosync.DirectoryReport) error {
	syncedAt := report.FinishedAt
	if syncedAt.IsZero() {
		syncedAt = s.clock.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO directory_results
		 (id, run_id, directory, album_name, album_id, uploaded, attached, deleted, skipped, failed, synced_at, dry_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ids.New(), runID, report.Directory, report.Album, report.AlbumID,
		len(report.Uploaded), len(report.Attached), len(report.Deleted), len(report.Skipped), len(report.Failed),
		syncedAt, report.DryRun,
	)
	if err != nil {
		return fmt.Errorf("recording directory %s: %w", report.Directory, err)
	}
	return nil
}

func (s *SQLiteHistory) ListDirectoryResults(runID int64) ([]*photosync.DirectoryResult, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, directory, album_name, album_id, dry_run,
		        uploaded, attached, deleted, skipped, failed, synced_at
		 FROM directory_results WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing directory results: %w", err)
	}
	defer rows.Close()

	var results []*photosync.DirectoryResult
	for rows.Next() {
		var r photosync.DirectoryResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.Directory, &r.Album, &r.AlbumID, &r.DryRun,
			&r.Uploaded, &r.Attached, &r.Deleted, &r.Skipped, &r.Failed, &r.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning directory result: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing directory results: %w", err)
	}
	return results, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteHistory) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteHistory) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteHistory implements photosync.History interface
var _ photosync.History = (*SQLiteHistory)(nil)
