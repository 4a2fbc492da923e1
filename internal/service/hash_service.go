package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the processor-side default; raising it slows every
// validation scan candidate, so change with care.
const bcryptCost = 10

// BcryptHashService implements ports.HashService using bcrypt. Each hash
// carries its own random salt, and comparison is constant-time internally.
type BcryptHashService struct{}

// NewBcryptHashService creates a new bcrypt hash service.
func NewBcryptHashService() *BcryptHashService {
	return &BcryptHashService{}
}

// Hash generates a salted bcrypt hash of the secret.
func (s *BcryptHashService) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether the secret matches the stored hash.
func (s *BcryptHashService) Compare(secret string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
