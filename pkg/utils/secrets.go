package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecret returns a URL-safe random token built from length random bytes.
func GenerateSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
