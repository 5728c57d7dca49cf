package photosync

import "time"

// FileError records a local file that could not be indexed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// DirectoryReport summarises one reconciliation pass.
type DirectoryReport struct {
	Directory string
	Album     string
	AlbumID   string
	DryRun    bool

	Deleted  []string // asset ids removed from the catalog
	Uploaded []string // paths whose body was transferred
	Attached []string // paths matched to an asset that already existed
	Skipped  []string // paths rejected by the service as too large
	Failed   []FileError

	Unchanged int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Changed reports whether the pass mutated (or, in a dry run, would mutate)
// the catalog.
func (r *DirectoryReport) Changed() bool {
	return len(r.Deleted) > 0 || len(r.Uploaded) > 0 || len(r.Attached) > 0
}

// SweepReport summarises a full sweep across the library.
type SweepReport struct {
	Purged      []string
	Directories []*DirectoryReport
}
