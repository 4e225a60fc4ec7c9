// Package checksum computes the content key used to deduplicate journal imports.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Normalize converts CRLF and lone CR line endings to LF and trims
// surrounding whitespace.
func Normalize(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return bytes.TrimSpace(data)
}

// Sum returns the hex-encoded SHA-256 digest of the normalized content.
func Sum(data []byte) string {
	h := sha256.Sum256(Normalize(data))
	return hex.EncodeToString(h[:])
}
