// Package errs classifies errors into the small taxonomy the service and
// transport layers use to decide retry and logging policy: validation,
// duplicate, storage, limit, schema, unexpected. It extends the teacher's
// fmt.Errorf("%w: ...", sentinel) wrapping style with a Classify helper
// instead of introducing an exception hierarchy.
package errs

import (
	"errors"
	"fmt"

	"github.com/memvault/memvault/internal/storage"
)

// Kind is one bucket of the error taxonomy. It drives retry/logging policy,
// never the user-facing message text (that comes from Error()).
type Kind string

const (
	KindValidation Kind = "validation"
	KindDuplicate  Kind = "duplicate"
	KindStorage    Kind = "storage"
	KindLimit      Kind = "limit"
	KindSchema     Kind = "schema"
	KindUnexpected Kind = "unexpected"
)

// Error wraps a cause with its classification. Callers construct one via
// Validation/Wrap; Classify recovers the Kind from a plain
// storage-layer error for callers that didn't originate it themselves.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause.Error())
}

func (e *Error) Unwrap() error { return e.cause }

// Validation builds a KindValidation error from a format string.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, cause: fmt.Errorf(format, args...)}
}

// Wrap classifies err via Classify and returns an *Error, or nil if err is
// nil.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: Classify(err), cause: err}
}

// Classify maps a storage-layer sentinel (or an unrecognized error) to its
// taxonomy Kind, per spec §7.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnexpected
	case errors.Is(err, storage.ErrInvalidInput):
		return KindValidation
	case errors.Is(err, storage.ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, storage.ErrMetadataTooLarge),
		errors.Is(err, storage.ErrContentTooLarge),
		errors.Is(err, storage.ErrCapacityExceeded),
		errors.Is(err, storage.ErrGraphBoundsExceeded):
		return KindLimit
	case errors.Is(err, storage.ErrSchema):
		return KindSchema
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrPermanent):
		return KindStorage
	default:
		return KindUnexpected
	}
}
