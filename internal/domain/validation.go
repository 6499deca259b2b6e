package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidOwner = fmt.Errorf("%w: owner name", ErrInvalidInput)
	ErrInvalidPIN   = fmt.Errorf("%w: PIN", ErrInvalidInput)
	ErrInvalidID    = fmt.Errorf("%w: account number", ErrInvalidInput)
)

// Validation constants
const (
	MaxOwnerLength = 255
	MinPINDigits   = 4
	MaxPINDigits   = 6
)

var pinRegex = regexp.MustCompile(`^\d{4,6}$`)

// ValidateOwner validates an account owner name.
func ValidateOwner(owner string) error {
	owner = strings.TrimSpace(owner)

	if owner == "" {
		return fmt.Errorf("%w: name required", ErrInvalidOwner)
	}

	if len(owner) > MaxOwnerLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidOwner, MaxOwnerLength)
	}

	return nil
}

// ValidatePIN checks that a PIN is 4 to 6 digits.
func ValidatePIN(pin string) error {
	if !pinRegex.MatchString(pin) {
		return fmt.Errorf("%w: must be %d-%d digits", ErrInvalidPIN, MinPINDigits, MaxPINDigits)
	}
	return nil
}

// ParseAmount parses a decimal amount from user input.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return amount, nil
}

// ParseAccountID parses an account number from user input.
func ParseAccountID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}
