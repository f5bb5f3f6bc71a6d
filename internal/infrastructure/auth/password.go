package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/iho/bankito/internal/domain"
)

// BcryptVerifier checks passwords against bcrypt hashes.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Verify reports domain.ErrInvalidCredentials when password does not match hash.
func (BcryptVerifier) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// HashPassword hashes a password for storage in users.password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
