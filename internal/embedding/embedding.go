// Package embedding implements the C1 Embedding Provider contract: turning
// batches of text into fixed-dimension float32 vectors over HTTP, with the
// circuit-breaker and rate-limiting posture the rest of the stack uses for
// outbound calls.
package embedding

import "errors"

// ErrEmbedding wraps every failure this package returns, per spec §4.1:
// model unavailability or a dimension mismatch must surface as a storage-
// level failure, never a silently-substituted zero vector.
var ErrEmbedding = errors.New("embedding provider error")

// ErrDimensionMismatch indicates a provider returned a vector whose length
// does not match its declared Dimension().
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")
