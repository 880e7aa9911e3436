// Package fileid derives stable identifiers for template content and job file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	contentPrefix = "sha256:"
	pathPrefix    = "file:"
)

// ContentHash identifies template bytes in the run journal. Equal bytes give equal hashes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return contentPrefix + hex.EncodeToString(sum[:])
}

// PathKey returns a stable key for a watched file path.
// Paths that differ only in cleaning (trailing slash, "./") share a key.
func PathKey(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return pathPrefix + hex.EncodeToString(hash[:])
}
