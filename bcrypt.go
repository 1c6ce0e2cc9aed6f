package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordHashCost is the bcrypt work factor used when none is configured.
const DefaultPasswordHashCost = 10

// BcryptHasher implements PasswordAuthenticator with a configurable cost.
type BcryptHasher struct {
	Cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

// NewBcryptHasher returns a hasher. A zero or out of range cost falls back
// to the build default, which race builds lower to bcrypt.MinCost.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return BcryptHasher{Cost: cost}
}

func (b BcryptHasher) HashPassword(password string) (string, error) {
	return hashPassword(password, b.Cost)
}

func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	return hashPassword(password, passwordHashCost())
}

func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
