package photosync

import (
	"context"
	"fmt"
	"sort"
)

// PurgeUnaffiliated deletes every asset that belongs to no album.
// Returns the ids of the deleted assets.
func (r *Reconciler) PurgeUnaffiliated(ctx context.Context) ([]string, error) {
	ids, err := r.catalog.FindUnaffiliatedAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("searching assets without album: %w", err)
	}
	sort.Strings(ids)

	r.logger.Info("deleting assets without album", "count", len(ids))
	if len(ids) == 0 || r.opts.DryRun {
		return ids, nil
	}
	if err := r.catalog.DeleteAssets(ctx, ids); err != nil {
		return nil, fmt.Errorf("deleting assets without album: %w", err)
	}
	return ids, nil
}

// Sweep purges unaffiliated assets once, then reconciles every subdirectory
// of root that matches the album pattern, in name order. The first fatal
// error stops the sweep; the report covers the directories completed so far.
func (r *Reconciler) Sweep(ctx context.Context, root *Path) (*SweepReport, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root.String())
	}

	report := &SweepReport{}

	purged, err := r.PurgeUnaffiliated(ctx)
	if err != nil {
		return report, err
	}
	report.Purged = purged

	dirs, err := r.fsmgr.ListDirectories(root)
	if err != nil {
		return report, fmt.Errorf("listing %s: %w", root.String(), err)
	}

	for _, dir := range dirs {
		if !r.opts.AlbumPattern.MatchString(dir.Base()) {
			r.logger.Debug("directory not tracked", "path", dir.String())
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		dirReport, err := r.SyncDirectory(ctx, dir)
		if dirReport != nil {
			report.Directories = append(report.Directories, dirReport)
		}
		if err != nil {
			return report, fmt.Errorf("syncing %s: %w", dir.String(), err)
		}
	}

	r.logger.Info("sweep complete", "directories", len(report.Directories), "purged", len(report.Purged))
	return report, nil
}

// MoveAsset moves an asset out of its current album into the album named
// albumName, creating that album if needed.
func (r *Reconciler) MoveAsset(ctx context.Context, assetID, albumName string) error {
	asset, err := r.catalog.AssetInfo(ctx, assetID)
	if err != nil {
		return fmt.Errorf("reading asset %s: %w", assetID, err)
	}

	albumID, err := r.catalog.FindOrCreateAlbum(ctx, albumName)
	if err != nil {
		return fmt.Errorf("finding or creating album %s: %w", albumName, err)
	}

	if len(asset.Albums) > 0 {
		current := asset.Albums[0].ID
		if current == albumID {
			return nil
		}
		if err := r.catalog.RemoveFromAlbum(ctx, assetID, current); err != nil {
			return fmt.Errorf("removing asset %s from album %s: %w", assetID, current, err)
		}
	}

	if err := r.catalog.AddToAlbum(ctx, albumID, assetID); err != nil {
		return fmt.Errorf("adding asset %s to album %s: %w", assetID, albumName, err)
	}

	r.logger.Info("asset moved", "asset", assetID, "album", albumName)
	return nil
}

// DeleteAlbum removes the album with the given id. Its assets stay in the
// catalog and are left for PurgeUnaffiliated if no other album holds them.
func (r *Reconciler) DeleteAlbum(ctx context.Context, albumID string) (*Album, error) {
	album, err := r.catalog.AlbumInfo(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("reading album %s: %w", albumID, err)
	}

	r.logger.Info("deleting album", "album", album.Name, "id", album.ID, "assets", len(album.Assets))
	if r.opts.DryRun {
		return album, nil
	}
	if err := r.catalog.DeleteAlbum(ctx, albumID); err != nil {
		return nil, fmt.Errorf("deleting album %s: %w", album.Name, err)
	}
	return album, nil
}
