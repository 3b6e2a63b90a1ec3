package internal

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/zeebo/blake3"
)

// ContentHash returns the hex blake3 digest of s, truncated to 32 characters.
func ContentHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// GenerateID creates an identifier from the current time and a seed.
// Format: epochMillis_hash(seed)[:8]
func GenerateID(seed string) string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), ContentHash(seed)[:8])
}

// SanitizeFilename creates a safe filename from a string. Letters and digits
// of any script are kept.
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
