package photosync

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultAlbumPattern selects library directories whose name starts with a year.
var DefaultAlbumPattern = regexp.MustCompile(`^\d{4}`)

// Options tunes the reconciler.
type Options struct {
	// UploadWorkers bounds concurrent uploads within one directory.
	// Values below 1 mean sequential uploads.
	UploadWorkers int

	// DryRun computes the deletion and addition sets without mutating
	// the catalog.
	DryRun bool

	// AlbumPattern selects which library subdirectories a sweep reconciles.
	// Nil means DefaultAlbumPattern.
	AlbumPattern *regexp.Regexp
}

// Reconciler makes remote albums mirror local directories. Albums are keyed
// by directory name and assets by content checksum, so renaming a file
// inside a directory is never a catalog change.
type Reconciler struct {
	catalog Catalog
	index   Indexer
	fsmgr   FilesystemManager
	logger  Logger
	clock   Clock
	opts    Options
}

// NewReconciler creates a Reconciler with the provided dependencies.
func NewReconciler(catalog Catalog, index Indexer, fsmgr FilesystemManager, logger Logger, clock Clock, opts Options) *Reconciler {
	if opts.UploadWorkers < 1 {
		opts.UploadWorkers = 1
	}
	if opts.AlbumPattern == nil {
		opts.AlbumPattern = DefaultAlbumPattern
	}
	return &Reconciler{
		catalog: catalog,
		index:   index,
		fsmgr:   fsmgr,
		logger:  logger,
		clock:   clock,
		opts:    opts,
	}
}

// SyncDirectory reconciles one directory against the album named after it.
// Assets in the album whose checksum no longer occurs in the directory are
// deleted in bulk; files whose checksum is missing from the album are
// uploaded and attached. Files that cannot be read are reported in
// DirectoryReport.Failed and do not abort the pass, but no asset is deleted
// in a pass with failed files.
func (r *Reconciler) SyncDirectory(ctx context.Context, dir *Path) (*DirectoryReport, error) {
	return r.reconcile(ctx, dir, true)
}

// UploadDirectory uploads every file of the directory that is missing from
// its album. Nothing is deleted.
func (r *Reconciler) UploadDirectory(ctx context.Context, dir *Path) (*DirectoryReport, error) {
	return r.reconcile(ctx, dir, false)
}

func (r *Reconciler) reconcile(ctx context.Context, dir *Path, prune bool) (*DirectoryReport, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir.String())
	}

	report := &DirectoryReport{
		Directory: dir.String(),
		Album:     dir.Base(),
		DryRun:    r.opts.DryRun,
		StartedAt: r.clock.Now(),
	}
	r.logger.Info("syncing directory", "path", dir.String(), "album", report.Album)

	albumID, err := r.resolveAlbum(ctx, report.Album)
	if err != nil {
		return report, err
	}
	report.AlbumID = albumID

	remote, err := r.remoteIndex(ctx, albumID)
	if err != nil {
		return report, err
	}

	local, err := r.localIndex(dir, report)
	if err != nil {
		return report, err
	}

	if prune && len(report.Failed) > 0 {
		// an unreadable file may hold the content of any remote-only asset
		r.logger.Warn("keeping remote assets, some files could not be read", "album", report.Album, "failed", len(report.Failed))
		prune = false
	}

	if prune {
		var toDelete []string
		for checksum, assetID := range remote {
			if _, ok := local[checksum]; !ok {
				toDelete = append(toDelete, assetID)
			}
		}
		sort.Strings(toDelete)
		if len(toDelete) > 0 {
			r.logger.Info("deleting assets", "album", report.Album, "count", len(toDelete))
			if !r.opts.DryRun {
				if err := r.catalog.DeleteAssets(ctx, toDelete); err != nil {
					return report, fmt.Errorf("deleting assets from %s: %w", report.Album, err)
				}
			}
			report.Deleted = toDelete
		}
	}

	var toAdd []*LocalFile
	for checksum, f := range local {
		if _, ok := remote[checksum]; ok {
			report.Unchanged++
			continue
		}
		toAdd = append(toAdd, f)
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i].Path.String() < toAdd[j].Path.String() })

	if err := r.addFiles(ctx, albumID, toAdd, report); err != nil {
		return report, err
	}

	report.FinishedAt = r.clock.Now()
	r.logger.Info("directory synced",
		"album", report.Album,
		"uploaded", len(report.Uploaded),
		"attached", len(report.Attached),
		"deleted", len(report.Deleted),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"unchanged", report.Unchanged,
	)
	return report, nil
}

// resolveAlbum finds or creates the album. In a dry run a missing album is
// not created and "" is returned.
func (r *Reconciler) resolveAlbum(ctx context.Context, name string) (string, error) {
	if r.opts.DryRun {
		id, err := r.catalog.FindAlbum(ctx, name)
		if err != nil {
			return "", fmt.Errorf("finding album %s: %w", name, err)
		}
		return id, nil
	}
	id, err := r.catalog.FindOrCreateAlbum(ctx, name)
	if err != nil {
		return "", fmt.Errorf("finding or creating album %s: %w", name, err)
	}
	return id, nil
}

// remoteIndex maps checksum to asset id for every asset in the album.
func (r *Reconciler) remoteIndex(ctx context.Context, albumID string) (map[string]string, error) {
	index := make(map[string]string)
	if albumID == "" {
		return index, nil
	}
	album, err := r.catalog.AlbumInfo(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("reading album %s: %w", albumID, err)
	}
	for _, asset := range album.Assets {
		index[asset.Checksum] = asset.ID
	}
	return index, nil
}

// localIndex maps checksum to file for every image or video directly inside
// dir. When several files share content the first by name wins.
func (r *Reconciler) localIndex(dir *Path, report *DirectoryReport) (map[string]*LocalFile, error) {
	paths, err := r.fsmgr.ListFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir.String(), err)
	}

	index := make(map[string]*LocalFile, len(paths))
	for _, p := range paths {
		kind, err := r.index.Classify(p)
		if err != nil {
			r.logger.Warn("cannot classify file", "path", p.String(), "error", err)
			report.Failed = append(report.Failed, FileError{Path: p.String(), Err: err})
			continue
		}
		if !kind.Syncable() {
			r.logger.Debug("file not synced", "path", p.String(), "kind", kind.String())
			continue
		}

		checksum, err := r.index.Checksum(p)
		if err != nil {
			r.logger.Warn("cannot checksum file", "path", p.String(), "error", err)
			report.Failed = append(report.Failed, FileError{Path: p.String(), Err: err})
			continue
		}
		if existing, ok := index[checksum]; ok {
			r.logger.Debug("duplicate content in directory", "path", p.String(), "same_as", existing.Path.String())
			continue
		}
		index[checksum] = &LocalFile{Path: p, Checksum: checksum, Kind: kind}
	}
	return index, nil
}

// addFiles uploads and attaches files, at most UploadWorkers at a time.
// The first fatal catalog error cancels the remaining uploads.
func (r *Reconciler) addFiles(ctx context.Context, albumID string, files []*LocalFile, report *DirectoryReport) error {
	if len(files) == 0 {
		return nil
	}
	r.logger.Info("uploading files", "album", report.Album, "count", len(files))

	if r.opts.DryRun {
		for _, f := range files {
			report.Uploaded = append(report.Uploaded, f.Path.String())
		}
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.UploadWorkers)
	for _, f := range files {
		g.Go(func() error {
			return r.addFile(gctx, albumID, f, report, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Strings(report.Uploaded)
	sort.Strings(report.Attached)
	sort.Strings(report.Skipped)
	return nil
}

// addFile uploads one file and attaches the resulting asset to the album.
func (r *Reconciler) addFile(ctx context.Context, albumID string, f *LocalFile, report *DirectoryReport, mu *sync.Mutex) error {
	path := f.Path.String()

	meta, err := r.index.Metadata(f.Path, f.Kind)
	if err != nil {
		r.logger.Warn("cannot read file metadata", "path", path, "error", err)
		mu.Lock()
		report.Failed = append(report.Failed, FileError{Path: path, Err: err})
		mu.Unlock()
		return nil
	}

	var size int64
	if info := f.Path.Info(); info != nil {
		size = info.Size()
	}

	r.logger.Debug("uploading file", "path", path, "checksum", f.Checksum)
	result, err := r.catalog.UploadAsset(ctx, &UploadRequest{
		Path:          path,
		Checksum:      f.Checksum,
		Size:          size,
		DeviceAssetID: path,
		CreatedAt:     meta.CapturedAt,
		ModifiedAt:    meta.ModifiedAt,
		Description:   meta.Description,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}

	if result.Skipped() {
		r.logger.Warn("file skipped by catalog", "path", path, "size", size, "status", string(result.Status))
		mu.Lock()
		report.Skipped = append(report.Skipped, path)
		mu.Unlock()
		return nil
	}

	if err := r.catalog.AddToAlbum(ctx, albumID, result.AssetID); err != nil {
		return fmt.Errorf("adding %s to album %s: %w", path, report.Album, err)
	}

	mu.Lock()
	if result.Transferred() {
		report.Uploaded = append(report.Uploaded, path)
	} else {
		report.Attached = append(report.Attached, path)
	}
	mu.Unlock()
	r.logger.Info("file synced", "path", path, "asset", result.AssetID, "status", string(result.Status))
	return nil
}
