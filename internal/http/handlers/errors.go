// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase and snake_case.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., save_failed, not_ready) are reserved for
//     narration and playback errors that cannot be conveyed by status alone.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "payload_too_large",
//     "message": "text must be at most 4000 characters"
//   }

package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"
	ErrCodeUnavailable     = "service_unavailable"

	// Domain-specific:
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeSaveFailed       = "save_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeGenerateFailed   = "generate_failed"
	ErrCodeAlreadyQueued    = "already_queued"
	ErrCodeNotReady         = "not_ready"
	ErrCodeUnknownCommand   = "unknown_command"
	ErrCodeCommandFailed    = "command_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
