package store

import (
	"errors"
	"fmt"
	"net/mail"
)

// ErrInvalidInput marks validation failures whose message is safe to show
// to the caller.
var ErrInvalidInput = errors.New("invalid input")

// MaxUserIDLength is the maximum allowed length for user identifier strings.
// Matches the VARCHAR(255) constraint in the database schema.
const MaxUserIDLength = 255

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// ValidateUserID checks that a user identifier does not exceed MaxUserIDLength.
func ValidateUserID(id string) error {
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("%w: user identifier too long: %d chars (max %d)", ErrInvalidInput, len(id), MaxUserIDLength)
	}
	return nil
}

// ValidateSignup checks email shape and password length.
func ValidateSignup(email, password string) error {
	if len(email) > MaxUserIDLength {
		return fmt.Errorf("%w: email too long: %d chars (max %d)", ErrInvalidInput, len(email), MaxUserIDLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address: %q", ErrInvalidInput, email)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}
