package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 8
	// bcrypt ignores everything past 72 bytes
	maxBytes = 72
)

var ErrInvalidPassword = errors.New("invalid password")

// Hash returns a bcrypt hash suitable for admin_params.password_hash
func Hash(pass string) (string, error) {
	if len([]rune(pass)) < MinLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, MinLength)
	}
	if len(pass) > maxBytes {
		return "", fmt.Errorf("%w: must be at most %d bytes", ErrInvalidPassword, maxBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether pass matches hash. A malformed hash never matches.
func Verify(pass, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}
