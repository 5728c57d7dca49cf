package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"photosync/internal/checksum"
	"photosync/internal/photosync"
)

// Calls counts the mutating requests a MemoryCatalog has served.
type Calls struct {
	CreateAlbum     int
	DeleteAlbum     int
	Upload          int // bodies transferred
	AddToAlbum      int
	RemoveFromAlbum int
	DeleteAssets    int // bulk delete requests
	DeletedAssets   int // assets removed by those requests
}

// Mutations is the total number of mutating requests.
func (c Calls) Mutations() int {
	return c.CreateAlbum + c.DeleteAlbum + c.Upload + c.AddToAlbum + c.RemoveFromAlbum + c.DeleteAssets
}

type memoryAlbum struct {
	id     string
	name   string
	assets []string // asset ids in insertion order
}

type memoryAsset struct {
	id       string
	checksum string
}

// MemoryCatalog is an in-memory implementation of photosync.Catalog.
// It keeps the same dedup and membership rules as the real service, which
// makes it useful for testing and for dry experiments.
// This implementation is safe for concurrent use.
type MemoryCatalog struct {
	mu         sync.Mutex
	albums     map[string]*memoryAlbum
	albumOrder []string
	assets     map[string]*memoryAsset
	uploadErrs map[string]error
	calls      Calls

	// MaxUploadSize rejects larger uploads as too large. 0 means no limit.
	MaxUploadSize int64
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		albums:     make(map[string]*memoryAlbum),
		assets:     make(map[string]*memoryAsset),
		uploadErrs: make(map[string]error),
	}
}

// SeedAlbum creates an album without counting it as a call.
func (m *MemoryCatalog) SeedAlbum(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAlbum(name).id
}

// SeedAsset stores an asset with the checksum and adds it to the given
// albums, without counting calls. Unknown album ids are ignored.
func (m *MemoryCatalog) SeedAsset(sum string, albumIDs ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.createAsset(sum)
	for _, id := range albumIDs {
		if album, ok := m.albums[id]; ok {
			album.assets = append(album.assets, a.id)
		}
	}
	return a.id
}

// FailUpload makes uploads of path return err.
func (m *MemoryCatalog) FailUpload(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrs[path] = err
}

// Calls returns a snapshot of the call counters.
func (m *MemoryCatalog) Calls() Calls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ResetCalls zeroes the call counters.
func (m *MemoryCatalog) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = Calls{}
}

// AlbumNames returns the names of all albums in creation order.
func (m *MemoryCatalog) AlbumNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.albumOrder))
	for _, id := range m.albumOrder {
		names = append(names, m.albums[id].name)
	}
	return names
}

// AssetCount returns the number of stored assets.
func (m *MemoryCatalog) AssetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

func (m *MemoryCatalog) createAlbum(name string) *memoryAlbum {
	a := &memoryAlbum{id: uuid.NewString(), name: name}
	m.albums[a.id] = a
	m.albumOrder = append(m.albumOrder, a.id)
	return a
}

func (m *MemoryCatalog) createAsset(sum string) *memoryAsset {
	a := &memoryAsset{id: uuid.NewString(), checksum: sum}
	m.assets[a.id] = a
	return a
}

func (m *MemoryCatalog) findAlbum(name string) string {
	for _, id := range m.albumOrder {
		if m.albums[id].name == name {
			return id
		}
	}
	return ""
}

func (m *MemoryCatalog) findByChecksum(sum string) []string {
	var ids []string
	for id, a := range m.assets {
		if a.checksum == sum {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryCatalog) FindAlbum(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAlbum(name), nil
}

func (m *MemoryCatalog) FindOrCreateAlbum(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id := m.findAlbum(name); id != "" {
		return id, nil
	}
	m.calls.CreateAlbum++
	return m.createAlbum(name).id, nil
}

func (m *MemoryCatalog) AlbumInfo(ctx context.Context, id string) (*photosync.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[id]
	if !ok {
		return nil, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	out := &photosync.Album{ID: album.id, Name: album.name, Assets: []photosync.Asset{}}
	for _, assetID := range album.assets {
		out.Assets = append(out.Assets, photosync.Asset{ID: assetID, Checksum: m.assets[assetID].checksum})
	}
	return out, nil
}

func (m *MemoryCatalog) DeleteAlbum(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.albums[id]; !ok {
		return fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	m.calls.DeleteAlbum++
	delete(m.albums, id)
	m.albumOrder = slices.DeleteFunc(m.albumOrder, func(s string) bool { return s == id })
	return nil
}

func (m *MemoryCatalog) AssetInfo(ctx context.Context, id string) (*photosync.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	asset, ok := m.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	out := &photosync.Asset{ID: asset.id, Checksum: asset.checksum}
	for _, albumID := range m.albumOrder {
		album := m.albums[albumID]
		if slices.Contains(album.assets, id) {
			out.Albums = append(out.Albums, photosync.AlbumRef{ID: album.id, Name: album.name})
		}
	}
	return out, nil
}

func (m *MemoryCatalog) FindAssetsByChecksum(ctx context.Context, sum string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByChecksum(sum), nil
}

func (m *MemoryCatalog) FindUnaffiliatedAssets(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member := make(map[string]bool)
	for _, album := range m.albums {
		for _, id := range album.assets {
			member[id] = true
		}
	}
	var ids []string
	for id := range m.assets {
		if !member[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryCatalog) UploadAsset(ctx context.Context, req *photosync.UploadRequest) (*photosync.UploadResult, error) {
	sum := req.Checksum
	if sum == "" {
		var err error
		sum, err = checksum.File(req.Path)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.uploadErrs[req.Path]; ok {
		return nil, err
	}
	if ids := m.findByChecksum(sum); len(ids) > 0 {
		return &photosync.UploadResult{AssetID: ids[0], Status: photosync.UploadExisting}, nil
	}
	if m.MaxUploadSize > 0 && req.Size > m.MaxUploadSize {
		return &photosync.UploadResult{Status: photosync.UploadTooLarge}, nil
	}

	m.calls.Upload++
	return &photosync.UploadResult{AssetID: m.createAsset(sum).id, Status: photosync.UploadCreated}, nil
}

func (m *MemoryCatalog) AddToAlbum(ctx context.Context, albumID, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok {
		return fmt.Errorf("album %s: %w", albumID, ErrNotFound)
	}
	if _, ok := m.assets[assetID]; !ok {
		return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	m.calls.AddToAlbum++
	if !slices.Contains(album.assets, assetID) {
		album.assets = append(album.assets, assetID)
	}
	return nil
}

func (m *MemoryCatalog) RemoveFromAlbum(ctx context.Context, assetID, albumID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	album, ok := m.albums[albumID]
	if !ok {
		return fmt.Errorf("album %s: %w", albumID, ErrNotFound)
	}
	m.calls.RemoveFromAlbum++
	album.assets = slices.DeleteFunc(album.assets, func(s string) bool { return s == assetID })
	return nil
}

func (m *MemoryCatalog) DeleteAssets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls.DeleteAssets++
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.assets[id]; ok {
			delete(m.assets, id)
			gone[id] = true
			m.calls.DeletedAssets++
		}
	}
	for _, album := range m.albums {
		album.assets = slices.DeleteFunc(album.assets, func(s string) bool { return gone[s] })
	}
	return nil
}

// Compile-time check that MemoryCatalog implements photosync.Catalog interface
var _ photosync.Catalog = (*MemoryCatalog)(nil)
