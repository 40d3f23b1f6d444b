package storage

import "errors"

// Sentinel errors returned by Store implementations. Callers use errors.Is
// to classify them; see internal/errs for the taxonomy surfaced to C5.
var (
	// ErrNotFound indicates the requested content_hash has no row (or only
	// a tombstoned one, for read paths that exclude deleted rows).
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidInput indicates a malformed or out-of-range argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicate indicates Store was called with a content_hash that
	// already has a non-deleted row. Not fatal: C5 surfaces this as a
	// duplicate result rather than an error envelope.
	ErrDuplicate = errors.New("duplicate content hash")

	// ErrSchema indicates a migration or DDL failure. Fatal to the
	// operation that triggered it.
	ErrSchema = errors.New("schema error")

	// ErrMetadataTooLarge indicates serialized vector metadata would exceed
	// the remote backend's per-record limit (spec §4.3.1).
	ErrMetadataTooLarge = errors.New("metadata exceeds backend size limit")

	// ErrContentTooLarge indicates content exceeds a backend's declared
	// max_content_length and the backend does not itself chunk.
	ErrContentTooLarge = errors.New("content exceeds backend max length")

	// ErrCapacityExceeded indicates a vector index is at or beyond its
	// configured hard-fail capacity (spec §4.3.2).
	ErrCapacityExceeded = errors.New("vector index capacity exceeded")

	// ErrPermanent wraps a remote error classified as non-retryable
	// (413, 507, quota — spec §4.3.5). C4 stops enqueueing retries for the
	// affected operation when it sees this.
	ErrPermanent = errors.New("permanent backend error")

	// ErrGraphBoundsExceeded indicates a graph traversal exceeded its
	// configured hop/node/edge bounds.
	ErrGraphBoundsExceeded = errors.New("graph bounds exceeded")
)
