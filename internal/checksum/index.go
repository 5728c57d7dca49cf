package checksum

import (
	"fmt"

	"photosync/internal/photosync"
)

// Index implements photosync.Indexer on top of a FilesystemManager.
type Index struct {
	fsmgr  photosync.FilesystemManager
	logger photosync.Logger
}

var _ photosync.Indexer = (*Index)(nil)

// NewIndex creates an Index reading files through fsmgr.
func NewIndex(fsmgr photosync.FilesystemManager, logger photosync.Logger) *Index {
	return &Index{fsmgr: fsmgr, logger: logger}
}

// Checksum returns the base64 SHA-1 of the file content.
func (x *Index) Checksum(path *photosync.Path) (string, error) {
	if path.IsDir() {
		return "", fmt.Errorf("cannot checksum directory: %s", path.String())
	}
	r, err := x.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer r.Close()

	sum, err := Sum(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path.String(), err)
	}
	return sum, nil
}
