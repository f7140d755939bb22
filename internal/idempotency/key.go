package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyHashLen = 32

// Key derives a stable key under scope from parts. String parts are
// trimmed so "TX-1" and " TX-1 " collide. The scope stays readable in the
// stored key.
func Key(scope string, parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		if s, ok := part.(string); ok {
			part = strings.TrimSpace(s)
		}
		fmt.Fprintf(h, "%v\x00", part)
	}
	return scope + ":" + hex.EncodeToString(h.Sum(nil))[:keyHashLen]
}
