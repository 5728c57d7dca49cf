package photosync

import (
	"database/sql"
	"time"
)

// Run is one recorded CLI operation.
type Run struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

// DirectoryResult is the persisted summary of a DirectoryReport.
type DirectoryResult struct {
	ID        string
	RunID     int64
	Directory string
	Album     string
	AlbumID   string
	DryRun    bool
	Uploaded  int
	Attached  int
	Deleted   int
	Skipped   int
	Failed    int
	SyncedAt  time.Time
}

// History stores the record of sync runs.
type History interface {
	// CreateRun records the start of an operation and returns it with its ID.
	CreateRun(operation, parameters string) (*Run, error)

	// FinishRun sets the finish time and status of a run.
	FinishRun(id int64, status string) error

	// RecordDirectory stores the outcome of one directory pass within a run.
	RecordDirectory(runID int64, report *DirectoryReport) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// ListDirectoryResults returns the directory results of a run in the
	// order they were recorded.
	ListDirectoryResults(runID int64) ([]*DirectoryResult, error)

	// Close closes the underlying store.
	Close() error
}
