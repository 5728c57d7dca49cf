package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"photosync/internal/photosync"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute and cleaned. Safe for concurrent use.
type MockFilesystemManager struct {
	mu    sync.RWMutex
	files map[string]*MockFile
	// unreadable paths fail on Open
	unreadable map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		unreadable: make(map[string]error),
	}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileAt(path, content, time.Date(2024, 6, 19, 12, 0, 0, 0, time.UTC))
}

// AddFileAt adds a file with the given modification time.
func (m *MockFilesystemManager) AddFileAt(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.addParents(path)
	m.files[path] = &MockFile{Permissions: 0755, IsDirectory: true}
}

// RemoveFile deletes a file.
func (m *MockFilesystemManager) RemoveFile(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(path))
}

// RenameFile moves a file to a new path, keeping its content.
func (m *MockFilesystemManager) RenameFile(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to = filepath.Clean(from), filepath.Clean(to)
	if f, ok := m.files[from]; ok {
		delete(m.files, from)
		m.addParents(to)
		m.files[to] = f
	}
}

// FailOpen makes Open of path return err.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreadable[filepath.Clean(path)] = err
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: 0755, IsDirectory: true}
		}
		if dir == filepath.Dir(dir) {
			return
		}
	}
}

func (m *MockFilesystemManager) pathFor(absPath string, file *MockFile) *photosync.Path {
	return photosync.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file))
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*photosync.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return m.pathFor(absPath, file), nil
}

func (m *MockFilesystemManager) Open(path *photosync.Path) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.unreadable[path.String()]; ok {
		return nil, err
	}
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *photosync.Path) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return newMockFileInfo(path.String(), file), nil
}

func (m *MockFilesystemManager) ListFiles(dir *photosync.Path) ([]*photosync.Path, error) {
	return m.children(dir, false)
}

func (m *MockFilesystemManager) ListDirectories(dir *photosync.Path) ([]*photosync.Path, error) {
	return m.children(dir, true)
}

// children returns the non-hidden direct entries of dir of the requested kind.
func (m *MockFilesystemManager) children(dir *photosync.Path, dirs bool) ([]*photosync.Path, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parent, ok := m.files[dir.String()]
	if !ok || !parent.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", dir.String())
	}

	var paths []*photosync.Path
	for p, file := range m.files {
		if p == dir.String() || filepath.Dir(p) != dir.String() {
			continue
		}
		if strings.HasPrefix(filepath.Base(p), ".") || file.IsDirectory != dirs {
			continue
		}
		paths = append(paths, m.pathFor(p, file))
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths, nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(absPath string, file *MockFile) *mockFileInfo {
	mode := file.Permissions
	if file.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(file.Content)),
		mode:    mode,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ photosync.FilesystemManager = (*MockFilesystemManager)(nil)
