// Package daily derives the shared board of the day.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed returns the tile seed for the day containing t:
// the first 8 bytes of HMAC-SHA256(salt, YYYY-MM-DD).
func Seed(t time.Time, salt string) uint64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(t)))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}
