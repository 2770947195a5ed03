package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID creates a globally unique ID in the format:
//
//	{prefix}_{unix_millis}_{20_hex_chars}
//
// The 20 hex characters are derived from 10 cryptographically random bytes,
// giving 80 bits of randomness to avoid collisions across concurrent agents.
// If crypto/rand fails, the ID omits the random suffix and relies on the
// millisecond timestamp alone (acceptable for local single-host usage).
func NewID(prefix string) string {
	timestamp := time.Now().UnixMilli()

	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%s_%d", prefix, timestamp)
	}

	return fmt.Sprintf("%s_%d_%s", prefix, timestamp, hex.EncodeToString(b[:]))
}
