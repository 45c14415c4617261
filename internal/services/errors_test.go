package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	base := errors.New("disk full")

	ie := infra("save narration", base)
	if !errors.Is(ie, base) || !IsRetryable(ie) || IsValidation(ie) {
		t.Fatalf("infrastructure error wrong: %v", ie)
	}
	if ie.Error() != "save narration: disk full" {
		t.Fatalf("message = %q", ie.Error())
	}
	if infra("noop", nil) != nil {
		t.Fatalf("infra(nil) must be nil")
	}

	wrapped := fmt.Errorf("batch: %w", ie)
	if !IsRetryable(wrapped) {
		t.Fatalf("retryable should survive wrapping")
	}

	ve := &ValidationError{Field: "text", Message: "must not be empty"}
	if !IsValidation(ve) || IsRetryable(ve) || ve.Error() != "text: must not be empty" {
		t.Fatalf("validation error wrong: %v", ve)
	}
	if (&ValidationError{Message: "bad"}).Error() != "bad" {
		t.Fatalf("field-less message wrong")
	}

	ce := &CollaboratorError{Collaborator: "generate", Op: "batch", Err: base}
	if !errors.Is(ce, base) || IsRetryable(ce) || ce.Error() != "generate batch: disk full" {
		t.Fatalf("collaborator error wrong: %v", ce)
	}
}
