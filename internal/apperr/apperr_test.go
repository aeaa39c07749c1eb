package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Conflict("STEP1_NOT_FROZEN", "STEP-1 must be frozen before STEP-2")
	wrapped := fmt.Errorf("freeze step2: %w", base)
	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("kind=%v want=%v", got, KindConflict)
	}
	if got := CodeOf(wrapped); got != "STEP1_NOT_FROZEN" {
		t.Fatalf("code=%q want STEP1_NOT_FROZEN", got)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("kind=%v want unknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Fatalf("kind=%v want unknown", got)
	}
}

func TestInfrastructure_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Infrastructure(cause, "store unavailable")
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause")
	}
	if err.Kind != KindInfrastructure {
		t.Fatalf("kind=%v", err.Kind)
	}
}
