package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// SessionTokenPrefix identifies gatehouse session tokens
	SessionTokenPrefix = "ghs_"
	// RefreshTokenPrefix identifies gatehouse refresh tokens
	RefreshTokenPrefix = "ghr_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// GenerateSessionToken creates a new session token.
// Format: ghs_<base64url(32 random bytes)>
func GenerateSessionToken() (string, error) {
	return newToken(SessionTokenPrefix)
}

// GenerateRefreshToken creates a new refresh token.
// Format: ghr_<base64url(32 random bytes)>
func GenerateRefreshToken() (string, error) {
	return newToken(RefreshTokenPrefix)
}

func newToken(prefix string) (string, error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// ValidateTokenFormat checks that a token carries the expected prefix and
// valid base64url content
func ValidateTokenFormat(token, prefix string) error {
	if !strings.HasPrefix(token, prefix) {
		return fmt.Errorf("token must start with %q", prefix)
	}

	encodedPart := strings.TrimPrefix(token, prefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}
