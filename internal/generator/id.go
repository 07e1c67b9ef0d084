package generator

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	// LinkIDLength is the length of issued link identifiers.
	LinkIDLength = 10
	// UserIDLength is the length of anonymous user identifiers.
	UserIDLength = 16
)

// GenerateID returns a URL-safe random identifier of the given length.
func GenerateID(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}

	// 3 random bytes yield 4 base64 characters.
	b := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
