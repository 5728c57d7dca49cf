// Package checksum fingerprints and classifies media files.
//
// A checksum is the SHA-1 digest of the complete file content encoded as
// standard base64, the form the photo catalog stores for every asset.
package checksum

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"os"
)

// Sum reads r to the end and returns the base64 SHA-1 of its content.
func Sum(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the checksum of data.
func Bytes(data []byte) string {
	h := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(h[:])
}

// File returns the checksum of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	sum, err := Sum(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return sum, nil
}
