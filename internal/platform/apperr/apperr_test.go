package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", apperr.NotFound("sheet %s not found", "s1"), "not_found"},
		{"invalid", apperr.Invalid("title is required"), "invalid"},
		{"conflict", apperr.Conflict("already exists"), "conflict"},
		{"unauthorized", apperr.Unauthorized("missing token"), "unauthorized"},
		{"wrapped", fmt.Errorf("get sheet: %w", apperr.NotFound("gone")), "not_found"},
		{"plain", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublic(t *testing.T) {
	err := fmt.Errorf("update problem: %w", apperr.Invalid("difficulty %q is not allowed", "insane"))

	msg, ok := apperr.Public(err)
	if !ok {
		t.Fatal("Public() should find the wrapped error")
	}
	if msg != `difficulty "insane" is not allowed` {
		t.Errorf("Public() = %q", msg)
	}

	if _, ok := apperr.Public(errors.New("db down")); ok {
		t.Error("Public() should not expose plain errors")
	}
}

func TestErrorsIs(t *testing.T) {
	err := apperr.NotFound("problem p1 not found")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) should be true")
	}
	if errors.Is(err, apperr.ErrInvalid) {
		t.Error("errors.Is(err, ErrInvalid) should be false")
	}
}
