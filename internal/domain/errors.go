package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrConflict marks a conditional write that lost a race: another writer
	// already committed a record at the target (user_id, notification_id).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks a transient store fault (throttling, timeout,
	// internal error). Retryable, unlike ErrEncoding or marshal failures.
	ErrUnavailable = errors.New("store unavailable")

	// ErrContentionExceeded is returned when the allocation loop exhausted
	// its retry budget without committing a record.
	ErrContentionExceeded = errors.New("contention exceeded")

	// ErrEncoding marks a non-serializable invalidation payload.
	ErrEncoding = errors.New("encoding failed")
)
