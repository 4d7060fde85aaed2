package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultTokenLength is the number of random bytes in a generated token
// secret (256 bits of entropy).
const DefaultTokenLength = 32

// GenerateToken returns a URL-safe, unpadded base64 string of byteLength
// cryptographically secure random bytes. A byteLength <= 0 falls back to
// DefaultTokenLength.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
