package catalog

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"photosync/internal/checksum"
	"photosync/internal/photosync"
)

type uploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// UploadAsset stores the file unless an asset with the same checksum already
// exists, in which case that asset's id is returned without sending a body.
// A 413 response is reported as photosync.UploadTooLarge; any other non-2xx
// status is an error.
func (c *Client) UploadAsset(ctx context.Context, req *photosync.UploadRequest) (*photosync.UploadResult, error) {
	sum := req.Checksum
	if sum == "" {
		var err error
		sum, err = checksum.File(req.Path)
		if err != nil {
			return nil, err
		}
	}

	ids, err := c.FindAssetsByChecksum(ctx, sum)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		c.logger.Debug("asset already in catalog", "path", req.Path, "asset", ids[0])
		return &photosync.UploadResult{AssetID: ids[0], Status: photosync.UploadExisting}, nil
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(req.Path); err == nil {
		contentType = mt.String()
	}

	resp, err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.uploadRequest(ctx, req, sum, contentType)
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", req.Path, err)
	}

	if resp.status == http.StatusRequestEntityTooLarge {
		c.logger.Warn("file too large for catalog", "path", req.Path, "size", req.Size)
		return &photosync.UploadResult{Status: photosync.UploadTooLarge}, nil
	}
	if !resp.ok() {
		return nil, newStatusError(http.MethodPost, "assets", resp.status, resp.body)
	}

	var out uploadResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", req.Path, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("uploading %s: response has no asset id", req.Path)
	}

	status := photosync.UploadCreated
	if out.Status == "duplicate" {
		status = photosync.UploadDuplicate
	}
	return &photosync.UploadResult{AssetID: out.ID, Status: status}, nil
}

// uploadRequest builds a streaming multipart POST for one attempt. The form
// is written from a goroutine into a pipe, so the file is never held in
// memory.
func (c *Client) uploadRequest(ctx context.Context, req *photosync.UploadRequest, sum, contentType string) (*http.Request, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", req.Path, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"assets", pr)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("x-immich-checksum", sum)

	go func() {
		defer f.Close()
		pw.CloseWithError(c.writeUploadForm(mw, req, f, contentType))
	}()
	return httpReq, nil
}

func (c *Client) writeUploadForm(mw *multipart.Writer, req *photosync.UploadRequest, f io.Reader, contentType string) error {
	created := req.CreatedAt
	if created.IsZero() {
		created = req.ModifiedAt
	}
	deviceAssetID := req.DeviceAssetID
	if deviceAssetID == "" {
		deviceAssetID = req.Path
	}

	fields := [][2]string{
		{"deviceAssetId", deviceAssetID},
		{"deviceId", c.deviceID},
		{"fileCreatedAt", created.Format(time.RFC3339)},
		{"fileModifiedAt", req.ModifiedAt.Format(time.RFC3339)},
	}
	if req.Description != "" {
		fields = append(fields, [2]string{"description", req.Description})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return fmt.Errorf("writing field %s: %w", kv[0], err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="assetData"; filename="%s"`, quoteEscaper.Replace(filepath.Base(req.Path))))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("streaming %s: %w", req.Path, err)
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
