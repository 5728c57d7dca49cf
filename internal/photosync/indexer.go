package photosync

// Indexer fingerprints and classifies local files.
type Indexer interface {
	// Checksum returns the content fingerprint of the file: a pure function
	// of its bytes, identical on every pass.
	Checksum(path *Path) (string, error)

	// Classify reports whether the file is an image, a video or neither.
	// Files that claim to be images but fail to decode are KindOther.
	// An error means the file could not be read at all.
	Classify(path *Path) (Kind, error)

	// Metadata returns the capture/modification timestamps and description
	// to attach to an upload.
	Metadata(path *Path, kind Kind) (*MediaMetadata, error)
}
