package util

import (
	"strings"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// TokenAlphabet is the URL-safe character set used for opaque tokens.
const TokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewID returns a new entity identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a well-formed entity identifier.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NewToken returns a random opaque token of n characters, optionally prefixed.
func NewToken(prefix string, n int) (string, error) {
	id, err := nanoid.Generate(TokenAlphabet, n)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return id, nil
	}
	return prefix + "_" + id, nil
}

// MustToken is NewToken for callers that cannot surface an error, such as request ids.
func MustToken(prefix string, n int) string {
	token, err := NewToken(prefix, n)
	if err == nil {
		return token
	}
	fallback := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return fallback
	}
	return prefix + "_" + fallback
}
