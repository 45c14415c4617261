// Package services defines the business logic for decks, narrations, the
// generation pipeline and audience questions. This file centralizes
// service-level error values and error types so that they can be returned
// consistently by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Lookup and validation errors.
var (
	// ErrDeckNotFound indicates that the requested deck does not exist.
	ErrDeckNotFound = errors.New("deck not found")

	// ErrSlideNotFound indicates that a referenced slide does not exist.
	ErrSlideNotFound = errors.New("slide not found")

	// ErrNarrationNotFound indicates that the requested narration row does not exist.
	ErrNarrationNotFound = errors.New("narration not found")

	// ErrQuestionNotFound indicates that the requested question does not exist.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrSlideDeckMismatch rejects a whole narration batch when any referenced
	// slide is missing or belongs to another deck. No item is written.
	ErrSlideDeckMismatch = errors.New("one or more slides do not belong to deck")

	// ErrNoItems is returned for an empty narration batch.
	ErrNoItems = errors.New("no narration items provided")

	// ErrEmptyText is returned when a question or narration text is blank.
	ErrEmptyText = errors.New("text is empty")

	// ErrTooLong is returned when text exceeds the configured rune limit.
	ErrTooLong = errors.New("text too long")

	// ErrNoSlides is returned when a deck is created without slides.
	ErrNoSlides = errors.New("deck must contain at least one slide")
)

// ValidationError describes a malformed input item. It is reported per item
// and never aborts a narration batch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InfrastructureError wraps storage and network failures. Callers may retry.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *InfrastructureError) Unwrap() error { return e.Err }

// Retryable reports that the failed operation may succeed on a later attempt.
func (e *InfrastructureError) Retryable() bool { return true }

// CollaboratorError wraps a failed call to an external collaborator
// (generator, translator, answerer or avatar provider).
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}
func (e *CollaboratorError) Unwrap() error { return e.Err }

// IsRetryable reports whether err (or anything it wraps) is marked retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func infra(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Op: op, Err: err}
}
