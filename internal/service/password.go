package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher derives and checks one-way password hashes.
type PasswordHasher interface {
	// Hash derives a new salted hash from the plaintext password.
	Hash(password string) (string, error)
	// Verify recomputes the hash of password with the salt embedded in hash
	// and reports whether they match.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements PasswordHasher with bcrypt. Every call to Hash
// uses a fresh random salt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher, clamping cost to bcrypt's valid range.
func NewBcryptHasher(cost int) *BcryptHasher {
	cost = max(cost, bcrypt.MinCost)
	cost = min(cost, bcrypt.MaxCost)
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password: %w", err)
	}
	return true, nil
}

var _ PasswordHasher = (*BcryptHasher)(nil)
