package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"photosync/internal/photosync"
)

// idsRequest is the body shared by the bulk membership endpoints.
type idsRequest struct {
	IDs []string `json:"ids"`
}

type createAlbumRequest struct {
	AlbumName   string   `json:"albumName"`
	Description string   `json:"description"`
	AssetIDs    []string `json:"assetIds,omitempty"`
}

// Albums lists every album without its assets.
func (c *Client) Albums(ctx context.Context) ([]photosync.Album, error) {
	var albums []photosync.Album
	if err := c.call(ctx, http.MethodGet, "albums", nil, &albums); err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	return albums, nil
}

// FindAlbum returns the id of the first album named exactly name, or "".
func (c *Client) FindAlbum(ctx context.Context, name string) (string, error) {
	albums, err := c.Albums(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range albums {
		if a.Name == name {
			return a.ID, nil
		}
	}
	return "", nil
}

// FindOrCreateAlbum returns the id of the album named name, creating it
// when missing. A conflict on creation means another client won the race,
// so the album is looked up again.
func (c *Client) FindOrCreateAlbum(ctx context.Context, name string) (string, error) {
	c.albumMu.Lock()
	defer c.albumMu.Unlock()

	id, err := c.FindAlbum(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id, err = c.CreateAlbum(ctx, name)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		c.logger.Warn("album created concurrently, looking it up again", "album", name)
		id, err = c.FindAlbum(ctx, name)
		if err == nil && id == "" {
			err = fmt.Errorf("album %q reported as existing but not listed", name)
		}
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateAlbum creates an empty album and returns its id.
func (c *Client) CreateAlbum(ctx context.Context, name string) (string, error) {
	var created photosync.Album
	req := createAlbumRequest{AlbumName: name}
	if err := c.call(ctx, http.MethodPost, "albums", req, &created); err != nil {
		return "", fmt.Errorf("creating album %q: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("creating album %q: response has no id", name)
	}
	c.logger.Info("album created", "album", name, "id", created.ID)
	return created.ID, nil
}

// AlbumInfo returns the album with its assets.
func (c *Client) AlbumInfo(ctx context.Context, id string) (*photosync.Album, error) {
	path := "albums/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("reading album %s: %w", id, err)
	}
	if resp.status == http.StatusNotFound {
		return nil, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}
	if !resp.ok() {
		return nil, newStatusError(http.MethodGet, path, resp.status, resp.body)
	}

	var album photosync.Album
	if err := decode(resp, &album); err != nil {
		return nil, fmt.Errorf("reading album %s: %w", id, err)
	}
	return &album, nil
}

// DeleteAlbum removes the album. Its assets stay in the catalog.
func (c *Client) DeleteAlbum(ctx context.Context, id string) error {
	if err := c.call(ctx, http.MethodDelete, "albums/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting album %s: %w", id, err)
	}
	return nil
}

// AddToAlbum makes the asset a member of the album. Adding an asset that is
// already a member succeeds.
func (c *Client) AddToAlbum(ctx context.Context, albumID, assetID string) error {
	path := "albums/" + url.PathEscape(albumID) + "/assets"
	if err := c.call(ctx, http.MethodPut, path, idsRequest{IDs: []string{assetID}}, nil); err != nil {
		return fmt.Errorf("adding asset %s to album %s: %w", assetID, albumID, err)
	}
	return nil
}

// RemoveFromAlbum drops the asset from the album.
func (c *Client) RemoveFromAlbum(ctx context.Context, assetID, albumID string) error {
	path := "assets/" + url.PathEscape(assetID) + "/albums"
	if err := c.call(ctx, http.MethodDelete, path, idsRequest{IDs: []string{albumID}}, nil); err != nil {
		return fmt.Errorf("removing asset %s from album %s: %w", assetID, albumID, err)
	}
	return nil
}
