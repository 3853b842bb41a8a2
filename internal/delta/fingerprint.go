package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the sha256 hex digest of content with whitespace
// normalized, so reflowed text keeps the same fingerprint.
func Fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
