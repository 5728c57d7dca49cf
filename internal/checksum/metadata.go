package checksum

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"photosync/internal/photosync"
)

// datePatterns extract a capture date from camera-style file names.
// Patterns are tried in order; first match wins.
var datePatterns = []struct {
	regex  *regexp.Regexp
	layout string
}{
	// IMG_20250619_123456.jpg, VID_20250619_123456.mp4
	{regexp.MustCompile(`(\d{8}_\d{6})`), "20060102_150405"},
	// DJI_20250619224111_0001_D.MP4
	{regexp.MustCompile(`DJI_(\d{14})`), "20060102150405"},
	// 2025-06-19 12.34.56.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}\.\d{2}\.\d{2})`), "2006-01-02 15.04.05"},
	// 2025-06-19_photo.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
}

// Metadata returns the timestamps and description sent with an upload.
// The capture time comes from EXIF for images, then from the file name,
// then from the modification time. Missing or unreadable EXIF data is not
// an error.
func (x *Index) Metadata(path *photosync.Path, kind photosync.Kind) (*photosync.MediaMetadata, error) {
	info, err := x.fsmgr.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path.String(), err)
	}

	meta := &photosync.MediaMetadata{
		CapturedAt: info.ModTime(),
		ModifiedAt: info.ModTime(),
	}

	if t, ok := dateFromFilename(path.Base()); ok {
		meta.CapturedAt = t
	}

	if kind == photosync.KindImage {
		x.readExif(path, meta)
	}
	return meta, nil
}

// readExif fills capture time and description from the image's EXIF block.
func (x *Index) readExif(path *photosync.Path, meta *photosync.MediaMetadata) {
	r, err := x.fsmgr.Open(path)
	if err != nil {
		x.logger.Debug("cannot open file for exif", "path", path.String(), "error", err)
		return
	}
	defer r.Close()

	ex, err := exif.Decode(r)
	if err != nil {
		x.logger.Debug("no exif data", "path", path.String(), "error", err)
		return
	}

	if t, err := ex.DateTime(); err == nil {
		meta.CapturedAt = t
	}

	if tag, err := ex.Get(exif.ImageDescription); err == nil {
		if s, err := tag.StringVal(); err == nil {
			meta.Description = strings.TrimSpace(strings.TrimRight(s, "\x00"))
		}
	}
}

// dateFromFilename attempts to extract a date from the file name.
func dateFromFilename(name string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.regex.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		if t, err := time.ParseInLocation(p.layout, m[1], time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
