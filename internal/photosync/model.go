package photosync

import "time"

// Kind classifies a local file for sync purposes.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Syncable reports whether files of this kind take part in reconciliation.
func (k Kind) Syncable() bool {
	return k == KindImage || k == KindVideo
}

// AlbumRef is the short form of an album embedded in asset records.
type AlbumRef struct {
	ID   string `json:"id"`
	Name string `json:"albumName"`
}

// Asset is a remote record representing one uploaded media file.
// ID is the remote identity; Checksum is the logical identity used for dedup.
type Asset struct {
	ID       string     `json:"id"`
	Checksum string     `json:"checksum"`
	Albums   []AlbumRef `json:"albums,omitempty"`
}

// Album is a named remote collection of assets, one per tracked directory.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"albumName"`
	Assets []Asset `json:"assets"`
}

// LocalFile is a classified, fingerprinted file found in a synced directory.
// It is recomputed on every pass and never persisted.
type LocalFile struct {
	Path     *Path
	Checksum string
	Kind     Kind
}

// MediaMetadata holds the timestamps and caption sent along with an upload.
type MediaMetadata struct {
	CapturedAt  time.Time
	ModifiedAt  time.Time
	Description string
}
