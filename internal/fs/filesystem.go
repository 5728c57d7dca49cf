package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photosync/internal/photosync"
)

// IgnoreFileName is the per-directory file listing extra ignore patterns.
const IgnoreFileName = ".photosyncignore"

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds patterns applied in every directory on top of its .photosyncignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*photosync.Path, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Stat the path
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if err := checkMode(absPath, info.Mode()); err != nil {
		return nil, err
	}

	return photosync.NewPath(absPath, info.IsDir(), info), nil
}

// checkMode rejects special file types we don't support.
func checkMode(absPath string, mode fs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", absPath)
	}
	return nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *photosync.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *photosync.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// ListFiles returns the files directly inside dir, sorted by name.
// Hidden files and files matching the ignore patterns are skipped.
func (m *OSFilesystemManager) ListFiles(dir *photosync.Path) ([]*photosync.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	matcher, err := m.matcherFor(dir.String())
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*photosync.Path
	for _, entry := range entries {
		if isHidden(entry.Name()) || matcher.Match(entry.Name()) {
			continue
		}
		if p := fileEntry(dir.String(), entry); p != nil {
			paths = append(paths, p)
		}
	}

	sortPaths(paths)
	return paths, nil
}

// fileEntry returns the listed path for entry, or nil if it is not a file.
// Symlinks are followed. An entry that cannot be stat'ed is still listed,
// without file info, so the read that follows reports it as failed.
func fileEntry(dir string, entry fs.DirEntry) *photosync.Path {
	fullPath := filepath.Join(dir, entry.Name())

	var info fs.FileInfo
	var err error
	switch {
	case entry.Type().IsRegular():
		info, err = entry.Info()
	case entry.Type()&fs.ModeSymlink != 0:
		info, err = os.Stat(fullPath)
		if err == nil && !info.Mode().IsRegular() {
			return nil
		}
	default:
		return nil
	}
	if err != nil {
		return photosync.NewPath(fullPath, false, nil)
	}
	return photosync.NewPath(fullPath, false, info)
}

// ListDirectories returns the non-hidden subdirectories directly inside dir,
// sorted by name.
func (m *OSFilesystemManager) ListDirectories(dir *photosync.Path) ([]*photosync.Path, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	entries, err := os.ReadDir(dir.String())
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*photosync.Path
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		fullPath := filepath.Join(dir.String(), entry.Name())
		paths = append(paths, photosync.NewPath(fullPath, true, info))
	}

	sortPaths(paths)
	return paths, nil
}

// matcherFor combines the configured patterns with the directory's ignore file.
func (m *OSFilesystemManager) matcherFor(dir string) (*IgnoreMatcher, error) {
	patterns, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(append([]string{}, m.ignore...), patterns...)), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func sortPaths(paths []*photosync.Path) {
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
}

// Compile-time check that OSFilesystemManager implements photosync.FilesystemManager interface
var _ photosync.FilesystemManager = (*OSFilesystemManager)(nil)
