package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      errors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "classified error",
			err:      NotFound("get habit", "habit %s", "h1"),
			expected: "Error: get habit: habit h1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("habit %s not found", "h1")
	if got != "Error: habit h1 not found" {
		t.Errorf("Formatf() = %q", got)
	}
}

func TestKindMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"not found", NotFound("op", "x"), ErrNotFound, KindNotFound},
		{"invalid schedule", InvalidSchedule("op", "x"), ErrInvalidSchedule, KindInvalidSchedule},
		{"duplicate completion", DuplicateCompletion("op", "x"), ErrDuplicateCompletion, KindDuplicateCompletion},
		{"circular dependency", CircularDependency("op", "x"), ErrCircularDependency, KindCircularDependency},
		{"dependency conflict", DependencyConflict("op", "x"), ErrDependencyConflict, KindDependencyConflict},
		{"validation", Validation("op", "x"), ErrValidation, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false, want true", wrapped)
			}
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
			if errors.Is(wrapped, ErrValidation) && tt.kind != KindValidation {
				t.Errorf("error of kind %v matched ErrValidation", tt.kind)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(KindNotFound, "op", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	base := errors.New("no rows")
	err := Wrap(KindNotFound, "load habit", base)
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error should match ErrNotFound")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should still match its cause")
	}
	if err.Error() != "load habit: not found: no rows" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want KindUnknown", got)
	}
}
