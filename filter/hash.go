package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash fingerprints body text for deduplication. Text is lowercased
// and all whitespace runs collapse to one space first, so formatting
// differences between fetches of the same story do not matter.
func ContentHash(body string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(body)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
