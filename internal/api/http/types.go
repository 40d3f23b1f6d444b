// Package http implements the FastAPI-style REST surface over the memory
// service (spec §6.2): memories CRUD, search (semantic/tag/time), health,
// stats/analytics, hybrid sync control, and quality scoring. Grounded on the
// teacher's web/handlers package shape (one file per resource, a shared
// respondJSON/respondError pair, stdlib http.ServeMux with prefix routes
// whose path parameters are split out by hand).
package http

import (
	"errors"
	"net/http"

	"github.com/memvault/memvault/internal/errs"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// ErrorResponse is the standard error envelope for every endpoint.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// wireMemory is the JSON shape of a stored memory: snake_case fields, float
// UTC-second timestamps authoritative over their ISO convenience mirrors
// (spec §6.2: "when an ISO string is included, it is a convenience field and
// not authoritative").
type wireMemory struct {
	ContentHash  string                 `json:"content_hash"`
	Content      string                 `json:"content"`
	Tags         []string               `json:"tags,omitempty"`
	MemoryType   string                 `json:"memory_type,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    float64                `json:"created_at"`
	UpdatedAt    float64                `json:"updated_at"`
	CreatedAtISO string                 `json:"created_at_iso,omitempty"`
	UpdatedAtISO string                 `json:"updated_at_iso,omitempty"`
}

func toWireMemory(m *types.Memory) *wireMemory {
	if m == nil {
		return nil
	}
	return &wireMemory{
		ContentHash:  m.ContentHash,
		Content:      m.Content,
		Tags:         m.Tags,
		MemoryType:   m.MemoryType,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		CreatedAtISO: m.CreatedAtISO,
		UpdatedAtISO: m.UpdatedAtISO,
	}
}

func toWireMemories(in []*types.Memory) []wireMemory {
	out := make([]wireMemory, 0, len(in))
	for _, m := range in {
		out = append(out, *toWireMemory(m))
	}
	return out
}

// statusFor maps an *errs.Error's classification to an HTTP status code,
// with storage.ErrNotFound (classified KindStorage alongside every other
// backend failure) checked separately so a missing memory still 404s
// instead of 500ing (spec §6.2: "404 if missing or tombstoned").
func statusFor(err *errs.Error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	switch err.Kind {
	case errs.KindValidation, errs.KindSchema:
		return http.StatusBadRequest
	case errs.KindDuplicate:
		return http.StatusConflict
	case errs.KindLimit:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
