package checksum

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"photosync/internal/photosync"
)

// imageExts maps image extensions to whether Go can fully decode the format.
// Formats without a decoder (HEIF, camera RAW) are checked by content
// sniffing instead.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".heic": false,
	".heif": false,
	".hif":  false,
	".avif": false,
	".dng":  false,
	".arw":  false,
	".cr2":  false,
	".cr3":  false,
	".nef":  false,
	".orf":  false,
	".raf":  false,
	".rw2":  false,
}

var videoExts = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".mts":  true,
	".m2ts": true,
	".3gp":  true,
	".webm": true,
	".wmv":  true,
	".mpg":  true,
	".mpeg": true,
}

// sniffLen is how much content mimetype inspects.
const sniffLen = 3072

// Classify determines the kind of a file from its extension, falling back to
// content sniffing for unknown extensions. A file claiming to be an image is
// decoded in full (or sniffed, when no decoder exists); if that fails it is
// classified as KindOther so that corrupt or partially written images are
// never uploaded.
func (x *Index) Classify(path *photosync.Path) (photosync.Kind, error) {
	if path.IsDir() {
		return photosync.KindOther, nil
	}

	ext := strings.ToLower(filepath.Ext(path.String()))
	if videoExts[ext] {
		return photosync.KindVideo, nil
	}
	decodable, isImage := imageExts[ext]
	if !isImage {
		return x.classifyByContent(path)
	}

	if decodable {
		return x.verifyDecode(path)
	}
	return x.verifySniff(path)
}

// classifyByContent infers the kind of a file with an unknown extension.
// Sniffed images still have to pass the decode check.
func (x *Index) classifyByContent(path *photosync.Path) (photosync.Kind, error) {
	mt, err := x.sniff(path)
	if err != nil {
		return photosync.KindOther, err
	}
	switch {
	case strings.HasPrefix(mt.String(), "video/"):
		return photosync.KindVideo, nil
	case strings.HasPrefix(mt.String(), "image/"):
		if _, ok := decodableMIME[mt.String()]; ok {
			return x.verifyDecode(path)
		}
		return photosync.KindImage, nil
	default:
		return photosync.KindOther, nil
	}
}

var decodableMIME = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/tiff": {},
	"image/webp": {},
}

// verifyDecode fully decodes the image.
func (x *Index) verifyDecode(path *photosync.Path) (photosync.Kind, error) {
	r, err := x.fsmgr.Open(path)
	if err != nil {
		return photosync.KindOther, fmt.Errorf("opening file: %w", err)
	}
	defer r.Close()

	_, format, err := image.Decode(r)
	if err != nil {
		x.logger.Warn("image does not decode", "path", path.String(), "error", err)
		return photosync.KindOther, nil
	}
	x.logger.Debug("image verified", "path", path.String(), "format", format)
	return photosync.KindImage, nil
}

// verifySniff accepts an image format Go cannot decode when its content is
// recognised as some image type.
func (x *Index) verifySniff(path *photosync.Path) (photosync.Kind, error) {
	mt, err := x.sniff(path)
	if err != nil {
		return photosync.KindOther, err
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		x.logger.Warn("image content not recognised", "path", path.String(), "mime", mt.String())
		return photosync.KindOther, nil
	}
	return photosync.KindImage, nil
}

func (x *Index) sniff(path *photosync.Path) (*mimetype.MIME, error) {
	r, err := x.fsmgr.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer r.Close()

	mt, err := mimetype.DetectReader(io.LimitReader(r, sniffLen))
	if err != nil {
		return nil, fmt.Errorf("sniffing %s: %w", path.String(), err)
	}
	return mt, nil
}
