package testutil

import (
	"crypto/sha1"
	"encoding/base64"
)

// Checksum returns the base64 SHA-1 of data, the form the catalog stores
// for every asset.
func Checksum(data []byte) string {
	h := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(h[:])
}
