package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a random record id.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateSessionToken returns a random opaque session secret (UUIDv4, 122 random bits).
func GenerateSessionToken() string {
	return uuid.NewString()
}

// MaskToken keeps enough of a token to correlate log lines without leaking it.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "****"
}
