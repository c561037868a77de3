package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 12

// NewID returns a random 24-character hex identifier, used for request
// ids and export job ids where uuid formatting would be noise.
func NewID() string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
