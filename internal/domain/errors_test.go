package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"foreign", errors.New("boom"), KindUnknown},
		{"invalid amount", ErrInvalidAmount, KindInvalidAmount},
		{"frozen", ErrFrozen, KindFrozen},
		{"insufficient funds", ErrInsufficientFunds, KindInsufficientFunds},
		{"not found", ErrAccountNotFound, KindAccountNotFound},
		{"unauthorized", ErrUnauthorized, KindUnauthorized},
		{"wrapped io", fmt.Errorf("save: %w", ErrIO), KindIO},
		{"corrupt", fmt.Errorf("decode: %w", ErrCorruptData), KindCorruptData},
		{"corrupt wins over io", fmt.Errorf("%w: %w", ErrIO, ErrCorruptData), KindCorruptData},
		{"invalid owner", ErrInvalidOwner, KindInvalidInput},
		{"invalid pin", fmt.Errorf("create: %w", ErrInvalidPIN), KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	if KindInsufficientFunds.String() != "insufficient_funds" {
		t.Errorf("unexpected name %q", KindInsufficientFunds.String())
	}
	if ErrorKind(99).String() != "kind(99)" {
		t.Errorf("unexpected name %q", ErrorKind(99).String())
	}
}
