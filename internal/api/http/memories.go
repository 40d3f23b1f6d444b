package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage"
)

// storeRequestBody is POST /api/memories' JSON body (spec §6.2).
type storeRequestBody struct {
	Content        string                 `json:"content"`
	Tags           interface{}            `json:"tags"`
	MemoryType     string                 `json:"memory_type"`
	Metadata       map[string]interface{} `json:"metadata"`
	ClientHostname string                 `json:"client_hostname"`
}

// handleStore implements POST /api/memories.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var body storeRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.ClientHostname == "" {
		body.ClientHostname = r.Header.Get("X-Client-Hostname")
	}

	outcome, serr := s.svc.Store(r.Context(), service.StoreRequest{
		Content:        body.Content,
		Tags:           body.Tags,
		MemoryType:     body.MemoryType,
		Metadata:       body.Metadata,
		ClientHostname: body.ClientHostname,
	})
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	if !outcome.Success && outcome.Reason == "duplicate" {
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"success":      false,
			"reason":       "duplicate",
			"content_hash": outcome.ContentHash,
		})
		return
	}

	resp := map[string]interface{}{"success": outcome.Success, "content_hash": outcome.ContentHash}
	if outcome.Memory != nil {
		resp["memory"] = toWireMemory(outcome.Memory)
	}
	if outcome.TotalChunks > 0 {
		resp["chunks_created"] = outcome.TotalChunks
		resp["chunk_hashes"] = outcome.ChunkHashes
		resp["failed_chunks"] = outcome.FailedChunks
	}
	status := http.StatusCreated
	if !outcome.Success {
		status = http.StatusOK
	}
	if outcome.Success && s.eventHub != nil {
		s.eventHub.Broadcast("memory_created", outcome.ContentHash)
	}
	respondJSON(w, status, resp)
}

// handleListMemories implements GET /api/memories?page=&page_size=&tag=&memory_type=.
func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	pageSize := atoiDefault(q.Get("page_size"), 50)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page < 1 {
		page = 1
	}

	opts := storage.ListOptions{
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
		MemoryType: q.Get("memory_type"),
	}
	if tag := q.Get("tag"); tag != "" {
		opts.Tags = []string{tag}
		opts.TagOp = storage.TagOpOR
	}

	outcome, serr := s.svc.List(r.Context(), opts)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"results":   toWireMemories(outcome.Results),
		"page":      page,
		"page_size": pageSize,
	})
}

// handleGetMemory implements GET /api/memories/{content_hash}.
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request, hash string) {
	mem, serr := s.svc.GetByHash(r.Context(), hash)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	if mem == nil || mem.IsDeleted() {
		respondError(w, http.StatusNotFound, "memory not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "memory": toWireMemory(mem)})
}

// handleDeleteMemory implements DELETE /api/memories/{content_hash}.
func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request, hash string) {
	if serr := s.svc.Delete(r.Context(), hash); serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	if s.eventHub != nil {
		s.eventHub.Broadcast("memory_deleted", hash)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// memoriesResource dispatches /api/memories and /api/memories/{hash} by
// method and path shape, matching the teacher's stdlib-ServeMux-with-manual-
// path-split routing (no third-party router in the pack for this).
func (s *Server) memoriesResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/memories")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		switch r.Method {
		case http.MethodPost:
			s.handleStore(w, r)
		case http.MethodGet:
			s.handleListMemories(w, r)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		}
		return
	}

	hash := rest
	switch r.Method {
	case http.MethodGet:
		s.handleGetMemory(w, r, hash)
	case http.MethodDelete:
		s.handleDeleteMemory(w, r, hash)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	}
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Debug().Str("value", raw).Msg("http: failed to parse integer query param, using default")
		return def
	}
	return n
}
