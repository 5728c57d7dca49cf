package photosync

import (
	"context"
	"time"
)

// Catalog is the remote photo-management service as seen by the reconciler.
// Implementations retry transient transport failures themselves; any error
// returned from a method is fatal for the current sweep.
type Catalog interface {
	// FindAlbum returns the id of the first album named exactly name,
	// or "" if there is none.
	FindAlbum(ctx context.Context, name string) (string, error)

	// FindOrCreateAlbum returns the id of the album named name, creating it
	// if it does not exist. Repeated calls never create duplicates.
	FindOrCreateAlbum(ctx context.Context, name string) (string, error)

	// AlbumInfo returns the album including its assets.
	AlbumInfo(ctx context.Context, id string) (*Album, error)

	// DeleteAlbum removes the album. Its assets are left in the catalog.
	DeleteAlbum(ctx context.Context, id string) error

	// AssetInfo returns a single asset.
	AssetInfo(ctx context.Context, id string) (*Asset, error)

	// FindAssetsByChecksum returns the ids of all assets with the checksum.
	FindAssetsByChecksum(ctx context.Context, checksum string) ([]string, error)

	// FindUnaffiliatedAssets returns the ids of all assets in no album.
	FindUnaffiliatedAssets(ctx context.Context) ([]string, error)

	// UploadAsset stores the file unless an asset with the same checksum
	// already exists. A payload rejected as too large is reported through
	// the result status, not as an error.
	UploadAsset(ctx context.Context, req *UploadRequest) (*UploadResult, error)

	// AddToAlbum makes the asset a member of the album.
	AddToAlbum(ctx context.Context, albumID, assetID string) error

	// RemoveFromAlbum drops the asset from the album.
	RemoveFromAlbum(ctx context.Context, assetID, albumID string) error

	// DeleteAssets removes all given assets in a single call.
	DeleteAssets(ctx context.Context, ids []string) error
}

// UploadRequest describes a local file to be stored in the catalog.
type UploadRequest struct {
	Path     string
	Checksum string // computed by the catalog when empty
	Size     int64

	DeviceAssetID string
	CreatedAt     time.Time
	ModifiedAt    time.Time
	Description   string
}

// UploadStatus is the outcome of an upload.
type UploadStatus string

const (
	// UploadCreated means the file body was transferred and a new asset created.
	UploadCreated UploadStatus = "created"
	// UploadDuplicate means the service recognised the body as a known asset.
	UploadDuplicate UploadStatus = "duplicate"
	// UploadExisting means an asset with the checksum was found before any
	// body was sent.
	UploadExisting UploadStatus = "existing"
	// UploadTooLarge means the service rejected the payload size. No asset.
	UploadTooLarge UploadStatus = "too_large"
)

// UploadResult is returned by Catalog.UploadAsset.
type UploadResult struct {
	AssetID string
	Status  UploadStatus
}

// Skipped reports whether the upload produced no asset.
func (r *UploadResult) Skipped() bool {
	return r.AssetID == "" || r.Status == UploadTooLarge
}

// Transferred reports whether a file body was stored as a new asset.
func (r *UploadResult) Transferred() bool {
	return r.Status == UploadCreated
}
