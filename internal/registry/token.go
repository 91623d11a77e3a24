package registry

import (
	"strings"

	"github.com/google/uuid"
)

// Token is an opaque identifier standing in for a source path that a backend
// cannot address directly. It is a random (version 4) UUID.
type Token struct {
	uuid.UUID
}

// NewToken returns a random token.
func NewToken() (Token, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Token{}, err
	}
	return Token{UUID: id}, nil
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool {
	return t.UUID == uuid.Nil
}

// ParseToken accepts the canonical form, optionally wrapped in braces or
// prefixed with urn:uuid:, or 32 bare hex digits.
func ParseToken(s string) (Token, bool) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return Token{}, false
	}
	return Token{UUID: id}, true
}
