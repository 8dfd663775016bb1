package password

import (
	"errors"
	"unicode"
)

// Acceptance policy errors, distinct from hashing errors so callers can map
// them to a 400-class response.
var (
	ErrPolicyUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPolicyLowercase = errors.New("password must contain at least one lowercase letter")
	ErrPolicyDigit     = errors.New("password must contain at least one digit")
)

// ValidatePolicy checks the acceptance policy: at least one uppercase
// letter, one lowercase letter, and one digit. Length bounds are enforced
// by the caller-facing schema.
func ValidatePolicy(password string) error {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return ErrPolicyUppercase
	case !lower:
		return ErrPolicyLowercase
	case !digit:
		return ErrPolicyDigit
	}
	return nil
}
