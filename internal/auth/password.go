// Package auth verifies credentials. It never creates sessions; callers
// pass the returned identity to a session.Issuer.
package auth

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	Cost int
}

// NewHasher clamps cost into bcrypt's accepted range.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{Cost: cost}
}

// Hash returns a bcrypt digest of plain. The salt is random, so two calls
// give different digests.
func (h Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares plain against digest in constant time. A malformed
// digest is reported as a mismatch.
func (h Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
