// Package services defines the business logic for mentor threads, messages,
// the judge tool and lesson documents. This file centralizes service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Every sentinel wraps one of the kind errors (ErrNotFound, ErrForbidden,
// ErrValidation, ErrConflict), so handlers can map any service error to an
// HTTP status with errors.Is on the kind alone.
package services

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
)

// Thread-related errors.
var (
	// ErrLessonNotFound is returned when a mentor-lesson id does not resolve
	// to a live lesson. No thread is written.
	ErrLessonNotFound = fmt.Errorf("%w: lesson", ErrNotFound)

	// ErrThreadNotFound indicates that the thread does not exist or is not
	// owned by the caller.
	ErrThreadNotFound = fmt.Errorf("%w: thread", ErrNotFound)

	// ErrThreadNotActive is returned for writes to a completed or abandoned thread.
	ErrThreadNotActive = fmt.Errorf("%w: thread is not active", ErrConflict)

	// ErrMissingIdentity is returned when the caller's user or tenant is unknown.
	ErrMissingIdentity = fmt.Errorf("%w: user and tenant are required", ErrValidation)
)

// Message-related errors.
var (
	// ErrEmptyContent is returned when a message has no content.
	ErrEmptyContent = fmt.Errorf("%w: content is empty", ErrValidation)

	// ErrContentTooLong is returned when a message exceeds the configured rune limit.
	ErrContentTooLong = fmt.Errorf("%w: content too long", ErrValidation)
)

// Judge-related errors.
var (
	// ErrInvalidToolPayload is returned when a tool payload fails schema validation.
	ErrInvalidToolPayload = fmt.Errorf("%w: tool payload", ErrValidation)

	// ErrThreadNotOwned is returned when a judge payload names a thread or
	// user other than the caller's own. It is checked before judging runs.
	ErrThreadNotOwned = fmt.Errorf("%w: thread not owned by caller", ErrForbidden)
)

// Document-related errors.
var (
	// ErrDocumentNotFound indicates that the document does not exist.
	ErrDocumentNotFound = fmt.Errorf("%w: document", ErrNotFound)

	// ErrInvalidUpload wraps ingest validation failures.
	ErrInvalidUpload = fmt.Errorf("%w: upload", ErrValidation)

	// ErrDocumentBusy is returned when re-ingesting a document that is still processing.
	ErrDocumentBusy = fmt.Errorf("%w: document is still processing", ErrConflict)
)
