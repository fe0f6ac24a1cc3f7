// Package security hashes and checks the API token that guards the upload
// service.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Tokens are 32 random bytes and are stored as a single salted HMAC.
const (
	tokenHashVersion = "t1"
	saltLength       = 16
	minTokenLength   = 24
)

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns "t1$<salt>$<digest>" for token, where digest is
// HMAC-SHA256 of the token keyed by the salt.
func HashToken(token string) (string, error) {
	if len(token) < minTokenLength {
		return "", fmt.Errorf("token must be at least %d characters", minTokenLength)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return strings.Join([]string{
		tokenHashVersion,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(tokenDigest(token, salt)),
	}, "$"), nil
}

// VerifyToken reports whether token matches a hash from HashToken. The
// comparison is constant time.
func VerifyToken(token, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != tokenHashVersion {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(salt) != saltLength {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(expected) != sha256.Size {
		return false
	}
	return hmac.Equal(tokenDigest(token, salt), expected)
}

// ErrMissingBearer is returned by BearerToken when the header carries no
// bearer credential.
var ErrMissingBearer = errors.New("missing bearer token")

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}

func tokenDigest(token string, salt []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}
