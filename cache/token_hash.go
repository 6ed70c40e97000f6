package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string. Cache keys stay fixed-length and the raw
// token value never appears in cache storage.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
