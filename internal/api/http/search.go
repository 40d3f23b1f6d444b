package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/internal/timeparse"
	"github.com/memvault/memvault/pkg/types"
)

type searchRequestBody struct {
	Query               string   `json:"query"`
	NResults            int      `json:"n_results"`
	Tags                []string `json:"tags"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	QualityBoost        bool     `json:"quality_boost"`
	QualityWeight       float64  `json:"quality_weight"`
}

// handleSearch implements POST /api/search (spec §6.2).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	outcome, serr := s.svc.Search(r.Context(), service.SearchRequest{
		Query:         body.Query,
		Limit:         body.NResults,
		Mode:          service.SearchModeSemantic,
		QualityBoost:  body.QualityBoost,
		QualityWeight: body.QualityWeight,
	})
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}

	results := outcome.Results
	if body.SimilarityThreshold != nil {
		filtered := results[:0:0]
		for _, res := range results {
			if res.SimilarityScore != nil && *res.SimilarityScore >= *body.SimilarityThreshold {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": toWireResults(results)})
}

type searchByTagBody struct {
	Tags      []string `json:"tags"`
	Operation string   `json:"operation"`
	TimeStart *float64 `json:"time_start"`
	TimeEnd   *float64 `json:"time_end"`
}

// handleSearchByTag implements POST /api/search/by-tag.
func (s *Server) handleSearchByTag(w http.ResponseWriter, r *http.Request) {
	var body searchByTagBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	op := storage.TagOpOR
	if body.Operation == "all" || body.Operation == "AND" {
		op = storage.TagOpAND
	}

	outcome, serr := s.svc.SearchByTag(r.Context(), body.Tags, op, body.TimeStart, body.TimeEnd)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": toWireMemories(outcome.Results)})
}

type searchByTimeBody struct {
	Query     string `json:"query"`
	NResults  int    `json:"n_results"`
}

// handleSearchByTime implements POST /api/search/by-time: Query is a
// natural-language time expression resolved by internal/timeparse. Any
// non-temporal, non-stopword remainder of Query (e.g. "meeting notes" in
// "meeting notes from last week") is carried through as the semantic query
// text; spec §4.2.4 degrades to most-recent-within-window only when that
// remainder is empty.
func (s *Server) handleSearchByTime(w http.ResponseWriter, r *http.Request) {
	var body searchByTimeBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	window, ok := timeparse.Parse(body.Query, time.Now())
	if !ok {
		respondError(w, http.StatusBadRequest, "unrecognized time expression", nil)
		return
	}
	queryText := strings.Join(timeparse.SignificantTerms(body.Query), " ")

	outcome, serr := s.svc.Recall(r.Context(), queryText, body.NResults, &window.Start, &window.End)
	if serr != nil {
		respondError(w, statusFor(serr), serr.Error(), serr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": toWireResults(outcome.Results)})
}

func toWireResults(in []types.MemoryQueryResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(in))
	for _, r := range in {
		entry := map[string]interface{}{"memory": toWireMemory(r.Memory)}
		if r.SimilarityScore != nil {
			entry["similarity_score"] = *r.SimilarityScore
		}
		if r.Distance != nil {
			entry["distance"] = *r.Distance
		}
		out = append(out, entry)
	}
	return out
}
