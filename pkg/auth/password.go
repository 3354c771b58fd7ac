package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SeedPasswordCost is the bcrypt cost for seeded accounts. Seeding hashes one
// password per run and shares it across every generated reader.
const SeedPasswordCost = bcrypt.DefaultCost

// bcrypt only reads the first 72 bytes.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword returns the bcrypt hash stored in users.password_hash.
// Logins are handled upstream; this service only writes hashes for seed data.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), SeedPasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
