package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecureKey returns a base64 URL-safe random string using the
// specified number of random bytes. Keys are drawn from crypto/rand and never
// derived from account attributes, so they are safe to embed in email links.
func GenerateSecureKey(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
