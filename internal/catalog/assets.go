package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"photosync/internal/photosync"
)

// searchRequest is the body of POST search/metadata. Unset filters are
// omitted so the server does not apply them.
type searchRequest struct {
	Checksum     string `json:"checksum,omitempty"`
	IsNotInAlbum bool   `json:"isNotInAlbum,omitempty"`
	Page         int    `json:"page,omitempty"`
	Size         int    `json:"size,omitempty"`
}

type searchResponse struct {
	Assets struct {
		Items    []photosync.Asset `json:"items"`
		NextPage pageToken         `json:"nextPage"`
	} `json:"assets"`
}

// pageToken is the next page number. The server sends it as a string,
// a number, or null on the last page.
type pageToken int

func (p *pageToken) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*p = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid page token %q: %w", s, err)
		}
		*p = pageToken(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid page token %s: %w", data, err)
	}
	*p = pageToken(n)
	return nil
}

// searchPageSize is the number of assets requested per search page.
const searchPageSize = 1000

type deleteAssetsRequest struct {
	Force bool     `json:"force"`
	IDs   []string `json:"ids"`
}

// AssetInfo returns a single asset including the albums it belongs to.
func (c *Client) AssetInfo(ctx context.Context, id string) (*photosync.Asset, error) {
	path := "assets/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", id, err)
	}
	if resp.status == http.StatusNotFound {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if !resp.ok() {
		return nil, newStatusError(http.MethodGet, path, resp.status, resp.body)
	}

	var asset photosync.Asset
	if err := decode(resp, &asset); err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", id, err)
	}
	return &asset, nil
}

// FindAssetsByChecksum returns the ids of all assets with the checksum.
func (c *Client) FindAssetsByChecksum(ctx context.Context, checksum string) ([]string, error) {
	assets, err := c.search(ctx, searchRequest{Checksum: checksum})
	if err != nil {
		return nil, fmt.Errorf("searching checksum %s: %w", checksum, err)
	}
	return assetIDs(assets), nil
}

// FindUnaffiliatedAssets returns the ids of all assets in no album.
func (c *Client) FindUnaffiliatedAssets(ctx context.Context) ([]string, error) {
	assets, err := c.search(ctx, searchRequest{IsNotInAlbum: true})
	if err != nil {
		return nil, fmt.Errorf("searching assets without album: %w", err)
	}
	return assetIDs(assets), nil
}

// DeleteAssets permanently removes the assets in one call. An empty list
// makes no request.
func (c *Client) DeleteAssets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.call(ctx, http.MethodDelete, "assets", deleteAssetsRequest{Force: true, IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting %d assets: %w", len(ids), err)
	}
	c.logger.Info("assets deleted", "count", len(ids))
	return nil
}

// search runs a metadata search and follows nextPage until exhausted.
func (c *Client) search(ctx context.Context, req searchRequest) ([]photosync.Asset, error) {
	req.Size = searchPageSize
	req.Page = 1

	var all []photosync.Asset
	for {
		var page searchResponse
		if err := c.call(ctx, http.MethodPost, "search/metadata", req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Assets.Items...)

		next := int(page.Assets.NextPage)
		if next == 0 || next <= req.Page {
			return all, nil
		}
		req.Page = next
	}
}

func assetIDs(assets []photosync.Asset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids
}

func decode(resp *response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
