package checksum

import (
	"testing"
	"time"

	"photosync/internal/photosync"
	"photosync/internal/testutil"
)

func TestDateFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		want   time.Time
		wantOK bool
	}{
		{"IMG_20250619_123456.jpg", time.Date(2025, 6, 19, 12, 34, 56, 0, time.Local), true},
		{"VID_20240101_000001.mp4", time.Date(2024, 1, 1, 0, 0, 1, 0, time.Local), true},
		{"DJI_20250619224111_0001_D.MP4", time.Date(2025, 6, 19, 22, 41, 11, 0, time.Local), true},
		{"2023-12-24 18.30.00.jpg", time.Date(2023, 12, 24, 18, 30, 0, 0, time.Local), true},
		{"2022-07-04_fireworks.jpg", time.Date(2022, 7, 4, 0, 0, 0, 0, time.Local), true},
		{"IMG_20251399_999999.jpg", time.Time{}, false},
		{"holiday.jpg", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := dateFromFilename(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("dateFromFilename() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("dateFromFilename() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndex_Metadata(t *testing.T) {
	mtime := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFileAt("/p/IMG_20240619_101500.png", testutil.PNG(t, 1), mtime)
	fsmgr.AddFileAt("/p/holiday.png", testutil.PNG(t, 2), mtime)
	fsmgr.AddFileAt("/p/clip.mp4", testutil.MP4(1), mtime)
	fsmgr.AddFileAt("/2019/IMG_20240619_101500.png", testutil.PNG(t, 3), mtime)
	fsmgr.AddFileAt("/2019/holiday.png", testutil.PNG(t, 4), mtime)
	x := NewIndex(fsmgr, photosync.NewNopLogger())

	tests := []struct {
		path     string
		kind     photosync.Kind
		captured time.Time
	}{
		{"/p/IMG_20240619_101500.png", photosync.KindImage, time.Date(2024, 6, 19, 10, 15, 0, 0, time.Local)},
		{"/p/holiday.png", photosync.KindImage, mtime},
		{"/p/clip.mp4", photosync.KindVideo, mtime},
		{"/2019/IMG_20240619_101500.png", photosync.KindImage, time.Date(2024, 6, 19, 10, 15, 0, 0, time.Local)},
		{"/2019/holiday.png", photosync.KindImage, mtime},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			path, err := fsmgr.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			meta, err := x.Metadata(path, tt.kind)
			if err != nil {
				t.Fatalf("Metadata() error = %v", err)
			}
			if !meta.CapturedAt.Equal(tt.captured) {
				t.Errorf("CapturedAt = %v, want %v", meta.CapturedAt, tt.captured)
			}
			if !meta.ModifiedAt.Equal(mtime) {
				t.Errorf("ModifiedAt = %v, want %v", meta.ModifiedAt, mtime)
			}
			if meta.Description != "" {
				t.Errorf("Description = %q, want empty without exif", meta.Description)
			}
		})
	}
}
