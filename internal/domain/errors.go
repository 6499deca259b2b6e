package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrFrozen            = errors.New("account is frozen")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrUnauthorized      = errors.New("invalid PIN")

	// Snapshot errors
	ErrIO               = errors.New("snapshot I/O failure")
	ErrCorruptData      = errors.New("snapshot data is corrupt")
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// Caller input errors
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorKind classifies an error so callers can branch without inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidAmount
	KindFrozen
	KindInsufficientFunds
	KindAccountNotFound
	KindUnauthorized
	KindIO
	KindCorruptData
	KindInvalidInput
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindInvalidAmount:     "invalid_amount",
	KindFrozen:            "frozen",
	KindInsufficientFunds: "insufficient_funds",
	KindAccountNotFound:   "account_not_found",
	KindUnauthorized:      "unauthorized",
	KindIO:                "io_error",
	KindCorruptData:       "corrupt_data",
	KindInvalidInput:      "invalid_input",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindOrder lists sentinels in match priority. CorruptData comes before IO
// because a failed read of a present snapshot may wrap both.
var kindOrder = []struct {
	err  error
	kind ErrorKind
}{
	{ErrCorruptData, KindCorruptData},
	{ErrIO, KindIO},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrFrozen, KindFrozen},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf returns the kind of err, or KindUnknown for nil and foreign errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
