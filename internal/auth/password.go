package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps bcrypt with a fixed cost factor.
type PasswordHasher struct {
	Cost int
}

func NewPasswordHasher() PasswordHasher {
	return PasswordHasher{Cost: bcrypt.DefaultCost}
}

func (p PasswordHasher) Hash(plaintext string) (string, error) {
	cost := p.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches the digest. A malformed
// digest verifies false rather than erroring.
func (p PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
