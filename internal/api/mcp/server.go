package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/consolidation"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/service"
	"github.com/memvault/memvault/internal/storage"
	"github.com/memvault/memvault/pkg/types"
)

// Server implements the Model Context Protocol for the memory service: a
// JSON-RPC 2.0 surface exposing the eleven unified tools of spec §6.1 plus a
// compatibility layer forwarding deprecated legacy tool names.
//
// Grounded on the teacher's Server/ServerOption/HandleRequest shape
// (functional options, a giant method-name switch dispatching to
// handleXxx/Xxx pairs, buildToolsList's map-literal JSON-schema idiom); the
// dispatch target is internal/service.Service instead of a direct
// storage.MemoryStore, and the tool surface itself is entirely new.
type Server struct {
	svc          *service.Service
	consolidator *consolidation.Consolidator
	scheduler    *consolidation.Scheduler
	provider     quality.Provider
	config       *config.Config
	sessionID    string
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithConfig injects a *config.Config into the Server.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) { s.config = cfg }
}

// WithConsolidator injects the consolidation engine backing memory_consolidate.
// If this option is omitted, memory_consolidate returns a result with
// Success false and an "engine not configured" Error message.
func WithConsolidator(c *consolidation.Consolidator) ServerOption {
	return func(s *Server) { s.consolidator = c }
}

// WithScheduler injects the background scheduler that memory_consolidate's
// "pause" action stops. Optional. The "scheduler" and "status" actions
// report the consolidator's own Status whether or not a scheduler is set.
func WithScheduler(sch *consolidation.Scheduler) ServerOption {
	return func(s *Server) { s.scheduler = sch }
}

// WithQualityProvider injects the quality.Provider backing memory_quality's
// "rate" action. Defaults to quality.NewImplicit() when omitted.
func WithQualityProvider(p quality.Provider) ServerOption {
	return func(s *Server) { s.provider = p }
}

// NewServer builds a Server around svc. Pass options for the consolidation
// and quality surfaces; a bare NewServer(svc) still answers every
// store/search/list/delete/update/graph/ingest/health/stats tool.
func NewServer(svc *service.Service, opts ...ServerOption) *Server {
	s := &Server{svc: svc, sessionID: uuid.New().String()}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		s.provider = quality.NewImplicit()
	}
	log.Info().Str("session_id", s.sessionID).Msg("mcp: server initialized")
	return s
}

// Config returns the configuration injected via WithConfig, or nil.
func (s *Server) Config() *config.Config {
	return s.config
}

// legacyToolNames maps deprecated legacy tool/method names to the unified
// handler they forward to (spec §6.1: "Deprecated tool names ... must
// remain callable via a compatibility layer that emits a warning and
// forwards to the unified handlers"). Populated from the memory-service
// ecosystem's well-known legacy surface.
var legacyToolNames = map[string]string{
	"store_memory":                     "memory_store",
	"create_memory":                    "memory_store",
	"remember":                         "memory_store",
	"retrieve_memory":                  "memory_search",
	"recall_memory":                    "memory_search",
	"search_memory":                    "memory_search",
	"semantic_search":                  "memory_search",
	"exact_match_retrieve":             "memory_search",
	"debug_retrieve":                   "memory_search",
	"search_by_tag":                    "memory_search",
	"list_memories":                    "memory_list",
	"list_all_memories":                "memory_list",
	"get_all_memories":                 "memory_list",
	"delete_memory":                    "memory_delete",
	"delete_by_tag":                    "memory_delete",
	"delete_by_tags":                   "memory_delete",
	"delete_by_all_tags":               "memory_delete",
	"delete_by_timeframe":              "memory_delete",
	"delete_before_date":               "memory_delete",
	"forget_memory":                    "memory_delete",
	"update_memory_metadata":           "memory_update",
	"update_memory":                    "memory_update",
	"consolidate_now":                  "memory_consolidate",
	"trigger_consolidation":            "memory_consolidate",
	"consolidate_status":               "memory_consolidate",
	"get_consolidation_status":         "memory_consolidate",
	"get_consolidation_recommendations": "memory_consolidate",
	"pause_consolidation":              "memory_consolidate",
	"resume_consolidation":             "memory_consolidate",
	"rate_memory_quality":              "memory_quality",
	"get_memory_quality":               "memory_quality",
	"analyze_quality_distribution":     "memory_quality",
	"get_quality_distribution":         "memory_quality",
	"get_connected_memories":           "memory_graph",
	"find_related":                     "memory_graph",
	"find_shortest_path":               "memory_graph",
	"get_subgraph":                     "memory_graph",
	"traverse_memory_graph":            "memory_graph",
	"ingest_document":                  "memory_ingest",
	"ingest_directory":                 "memory_ingest",
	"import_markdown":                  "memory_ingest",
	"check_database_health":            "memory_health",
	"health_check":                     "memory_health",
	"get_stats":                        "memory_stats",
	"get_database_stats":               "memory_stats",
}

// HandleRequest processes a single JSON-RPC 2.0 request and returns the
// encoded response.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err)
	}
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	method := req.Method
	if canonical, deprecated := legacyToolNames[method]; deprecated {
		log.Warn().Str("legacy_method", method).Str("forwarded_to", canonical).
			Msg("mcp: deprecated tool name used, forwarding to unified handler")
		method = canonical
	}

	switch method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	case "memory_store":
		result, err = s.handleStore(ctx, req.Params)
	case "memory_search":
		result, err = s.handleSearch(ctx, req.Params)
	case "memory_list":
		result, err = s.handleList(ctx, req.Params)
	case "memory_delete":
		result, err = s.handleDelete(ctx, req.Params)
	case "memory_update":
		result, err = s.handleUpdate(ctx, req.Params)
	case "memory_consolidate":
		result, err = s.handleConsolidate(ctx, req.Params)
	case "memory_quality":
		result, err = s.handleQuality(ctx, req.Params)
	case "memory_graph":
		result, err = s.handleGraph(ctx, req.Params)
	case "memory_ingest":
		result, err = s.handleIngest(ctx, req.Params)
	case "memory_health":
		result, err = s.handleHealth(ctx, req.Params)
	case "memory_stats":
		result, err = s.handleStats(ctx, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}
	return s.successResponse(req.ID, result)
}

// toWireMemory converts a storage record into the MCP wire shape.
func toWireMemory(m *types.Memory) *Memory {
	if m == nil {
		return nil
	}
	return &Memory{
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

func toWireMemories(in []*types.Memory) []Memory {
	out := make([]Memory, 0, len(in))
	for _, m := range in {
		out = append(out, *toWireMemory(m))
	}
	return out
}

// Store implements memory_store (spec §6.1).
func (s *Server) Store(ctx context.Context, args StoreArgs) (*StoreResult, error) {
	outcome, serr := s.svc.Store(ctx, service.StoreRequest{
		Content:        args.Content,
		Tags:           args.Tags,
		MemoryType:     args.MemoryType,
		Metadata:       args.Metadata,
		ClientHostname: args.ClientHostname,
	})
	if serr != nil {
		return &StoreResult{Success: false, Error: serr.Error()}, nil
	}
	result := &StoreResult{
		Success:       outcome.Success,
		ContentHash:   outcome.ContentHash,
		Memory:        toWireMemory(outcome.Memory),
		ChunksCreated: outcome.TotalChunks,
		ChunkHashes:   outcome.ChunkHashes,
		FailedChunks:  outcome.FailedChunks,
	}
	if !outcome.Success && outcome.Reason != "" {
		result.Error = outcome.Reason
	}
	return result, nil
}

// Search implements memory_search (spec §6.1).
func (s *Server) Search(ctx context.Context, args SearchArgs) (*SearchResult, error) {
	outcome, serr := s.svc.Search(ctx, service.SearchRequest{
		Query:         args.Query,
		Limit:         args.Limit,
		Mode:          service.SearchMode(args.Mode),
		Before:        args.Before,
		After:         args.After,
		QualityBoost:  args.QualityBoost,
		QualityWeight: args.QualityWeight,
	})
	if serr != nil {
		return &SearchResult{Success: false, Error: serr.Error()}, nil
	}
	items := make([]SearchResultItem, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		items = append(items, SearchResultItem{Memory: *toWireMemory(r.Memory), SimilarityScore: r.SimilarityScore})
	}
	return &SearchResult{Success: true, Results: items}, nil
}

// List implements memory_list (spec §6.1).
func (s *Server) List(ctx context.Context, args ListArgs) (*ListResult, error) {
	page := args.Page
	if page <= 0 {
		page = 1
	}
	pageSize := args.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	opts := storage.ListOptions{
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
		MemoryType: args.MemoryType,
	}
	if args.Tag != "" {
		opts.Tags = []string{args.Tag}
		opts.TagOp = storage.TagOpAND
	}

	outcome, serr := s.svc.List(ctx, opts)
	if serr != nil {
		return &ListResult{Success: false, Error: serr.Error()}, nil
	}
	return &ListResult{
		Success:  true,
		Results:  toWireMemories(outcome.Results),
		Page:     page,
		PageSize: pageSize,
		Total:    len(outcome.Results),
	}, nil
}

// Delete implements memory_delete's union of deletion modes (spec §6.1).
func (s *Server) Delete(ctx context.Context, args DeleteArgs) (*DeleteResult, error) {
	if args.ContentHash != "" {
		if args.DryRun {
			return &DeleteResult{Success: true, DeletedCount: 1, DryRun: true}, nil
		}
		if serr := s.svc.Delete(ctx, args.ContentHash); serr != nil {
			return &DeleteResult{Success: false, Error: serr.Error()}, nil
		}
		return &DeleteResult{Success: true, DeletedCount: 1}, nil
	}

	if args.Tags != nil {
		tags, terr := service.NormalizeTags(args.Tags)
		if terr != nil {
			return &DeleteResult{Success: false, Error: terr.Error()}, nil
		}
		op := storage.TagOpOR
		if args.TagMatch == "all" {
			op = storage.TagOpAND
		}
		if args.DryRun {
			outcome, serr := s.svc.SearchByTag(ctx, tags, op, nil, nil)
			if serr != nil {
				return &DeleteResult{Success: false, Error: serr.Error()}, nil
			}
			return &DeleteResult{Success: true, DeletedCount: len(outcome.Results), DryRun: true}, nil
		}
		n, serr := s.svc.DeleteByTags(ctx, tags, op)
		if serr != nil {
			return &DeleteResult{Success: false, Error: serr.Error()}, nil
		}
		return &DeleteResult{Success: true, DeletedCount: n}, nil
	}

	if args.Before != nil || args.After != nil {
		start := 0.0
		if args.After != nil {
			start = *args.After
		}
		end := float64(1<<62) * 2
		if args.Before != nil {
			end = *args.Before
		}
		if args.DryRun {
			outcome, serr := s.svc.SearchByTimeframe(ctx, start, end, "")
			if serr != nil {
				return &DeleteResult{Success: false, Error: serr.Error()}, nil
			}
			return &DeleteResult{Success: true, DeletedCount: len(outcome.Results), DryRun: true}, nil
		}
		n, serr := s.svc.DeleteByTimeframe(ctx, start, end, "")
		if serr != nil {
			return &DeleteResult{Success: false, Error: serr.Error()}, nil
		}
		return &DeleteResult{Success: true, DeletedCount: n}, nil
	}

	return &DeleteResult{Success: false, Error: "memory_delete: one of content_hash, tags, or before/after is required"}, nil
}

// Update implements memory_update (spec §6.1).
func (s *Server) Update(ctx context.Context, args UpdateArgs) (*UpdateResult, error) {
	serr := s.svc.UpdateMemoryMetadata(ctx, service.UpdateMetadataRequest{
		ContentHash:        args.ContentHash,
		Updates:            args.Updates,
		PreserveTimestamps: true,
	})
	if serr != nil {
		return &UpdateResult{Success: false, Error: serr.Error()}, nil
	}
	return &UpdateResult{Success: true}, nil
}

// Consolidate implements memory_consolidate (spec §6.1). Action is one of
// run/status/recommend/scheduler/pause/resume.
func (s *Server) Consolidate(ctx context.Context, args ConsolidateArgs) (*ConsolidateResult, error) {
	if s.consolidator == nil {
		return &ConsolidateResult{Success: false, Error: "memory_consolidate: consolidation engine not configured"}, nil
	}

	horizon := consolidation.Horizon(args.Horizon)
	if horizon == "" {
		horizon = consolidation.HorizonDaily
	}

	switch args.Action {
	case "run":
		result, err := s.consolidator.Trigger(ctx, horizon)
		if err != nil {
			return &ConsolidateResult{Success: false, Error: err.Error()}, nil
		}
		return &ConsolidateResult{Success: true, Run: toWireRunResult(result)}, nil
	case "status", "scheduler":
		status := s.consolidator.Status()
		return &ConsolidateResult{Success: true, Status: toWireStatus(status)}, nil
	case "recommend":
		recs, err := s.consolidator.Recommendations(ctx)
		if err != nil {
			return &ConsolidateResult{Success: false, Error: err.Error()}, nil
		}
		return &ConsolidateResult{Success: true, Recommendations: toWireRecommendations(recs)}, nil
	case "pause":
		s.consolidator.Pause()
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		return &ConsolidateResult{Success: true}, nil
	case "resume":
		s.consolidator.Resume()
		return &ConsolidateResult{Success: true}, nil
	default:
		return &ConsolidateResult{Success: false, Error: fmt.Sprintf("memory_consolidate: unknown action %q", args.Action)}, nil
	}
}

func toWireRunResult(r *consolidation.RunResult) *ConsolidationRunResult {
	if r == nil {
		return nil
	}
	return &ConsolidationRunResult{
		Horizon:           string(r.Horizon),
		MemoriesScored:    r.MemoriesScored,
		QualityBoosted:    r.QualityBoosted,
		AssociationsFound: r.AssociationsFound,
		ClustersFound:     r.ClustersFound,
		MemoriesArchived:  r.MemoriesArchived,
	}
}

func toWireStatus(st consolidation.Status) *ConsolidationStatus {
	out := &ConsolidationStatus{Running: st.Running, Paused: st.Paused}
	if !st.LastRun.IsZero() {
		out.LastRun = st.LastRun.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	out.LastHorizon = string(st.LastHorizon)
	return out
}

func toWireRecommendations(recs []consolidation.Recommendation) []ConsolidationRecommendation {
	out := make([]ConsolidationRecommendation, 0, len(recs))
	for _, r := range recs {
		out = append(out, ConsolidationRecommendation{Kind: r.Kind, Message: r.Message, Count: r.Count})
	}
	return out
}

// Quality implements memory_quality (spec §6.1/§6.3). Action is one of
// rate/get/analyze.
func (s *Server) Quality(ctx context.Context, args QualityArgs) (*QualityResult, error) {
	switch args.Action {
	case "rate":
		outcome, serr := s.svc.RateMemory(ctx, args.ContentHash, s.provider)
		if serr != nil {
			return &QualityResult{Success: false, Error: serr.Error()}, nil
		}
		return &QualityResult{Success: true, Memory: toWireMemory(outcome.Memory)}, nil
	case "get":
		outcome, serr := s.svc.GetQuality(ctx, args.ContentHash)
		if serr != nil {
			return &QualityResult{Success: false, Error: serr.Error()}, nil
		}
		return &QualityResult{Success: true, Memory: toWireMemory(outcome.Memory)}, nil
	case "analyze":
		outcome, serr := s.svc.AnalyzeQuality(ctx)
		if serr != nil {
			return &QualityResult{Success: false, Error: serr.Error()}, nil
		}
		dist := make(map[string]int, len(outcome.Distribution))
		for tier, count := range outcome.Distribution {
			dist[string(tier)] = count
		}
		avg := outcome.AverageScore
		return &QualityResult{Success: true, Distribution: dist, AverageScore: &avg}, nil
	default:
		return &QualityResult{Success: false, Error: fmt.Sprintf("memory_quality: unknown action %q", args.Action)}, nil
	}
}

// Graph implements memory_graph (spec §6.1). Action is one of
// connected/path/subgraph/evolution_chain.
func (s *Server) Graph(ctx context.Context, args GraphArgs) (*GraphResult, error) {
	switch args.Action {
	case "evolution_chain":
		chain, serr := s.svc.GetEvolutionChain(ctx, args.Hash)
		if serr != nil {
			return &GraphResult{Success: false, Error: serr.Error()}, nil
		}
		return &GraphResult{Success: true, Evolution: toWireMemories(chain)}, nil
	case "connected":
		direction := storage.Direction(args.Direction)
		if direction == "" {
			direction = storage.DirectionBoth
		}
		outcome, serr := s.svc.Connected(ctx, args.Hash, args.Hops, direction)
		if serr != nil {
			return &GraphResult{Success: false, Error: serr.Error()}, nil
		}
		return &GraphResult{Success: true, Connected: toWireMemories(outcome.Connected)}, nil
	case "path":
		outcome, serr := s.svc.Path(ctx, args.Hash, args.OtherHash)
		if serr != nil {
			return &GraphResult{Success: false, Error: serr.Error()}, nil
		}
		return &GraphResult{Success: true, Path: outcome.Path}, nil
	case "subgraph":
		outcome, serr := s.svc.Subgraph(ctx, args.Hash, args.Radius)
		if serr != nil {
			return &GraphResult{Success: false, Error: serr.Error()}, nil
		}
		return &GraphResult{Success: true, Subgraph: toWireSubgraph(outcome.Subgraph)}, nil
	default:
		return &GraphResult{Success: false, Error: fmt.Sprintf("memory_graph: unknown action %q", args.Action)}, nil
	}
}

func toWireSubgraph(sg *storage.Subgraph) *Subgraph {
	if sg == nil {
		return nil
	}
	edges := make([]GraphEdge, 0, len(sg.Edges))
	for _, e := range sg.Edges {
		edges = append(edges, GraphEdge{
			SourceHash:       e.SourceHash,
			TargetHash:       e.TargetHash,
			RelationshipType: string(e.RelationshipType),
			Similarity:       e.Similarity,
		})
	}
	return &Subgraph{Hashes: sg.Hashes, Edges: edges}
}

// Ingest implements memory_ingest (spec §6.1).
func (s *Server) Ingest(ctx context.Context, args IngestArgs) (*IngestResult, error) {
	tags, terr := service.NormalizeTags(args.Tags)
	if terr != nil {
		return &IngestResult{Success: false, Error: terr.Error()}, nil
	}
	outcome, serr := s.svc.Ingest(ctx, service.IngestRequest{
		Path:         args.Path,
		Tags:         tags,
		ChunkSize:    args.ChunkSize,
		ChunkOverlap: args.ChunkOverlap,
	})
	if serr != nil {
		return &IngestResult{Success: false, Error: serr.Error()}, nil
	}
	failures := make([]IngestFailed, 0, len(outcome.Failures))
	for _, f := range outcome.Failures {
		failures = append(failures, IngestFailed{Path: f.Path, Error: f.Error})
	}
	return &IngestResult{Success: outcome.Success, MemoriesCreated: outcome.MemoriesCreated, Failures: failures}, nil
}

// Health implements memory_health (spec §6.1, no input).
func (s *Server) Health(ctx context.Context) (*HealthResult, error) {
	report, serr := s.svc.HealthCheck(ctx)
	if serr != nil {
		return &HealthResult{Success: false}, nil
	}
	result := &HealthResult{
		Success:        true,
		BackendKind:    report.BackendKind,
		Connected:      report.Connected,
		MemoryCount:    report.MemoryCount,
		DBSizeBytes:    report.DBSizeBytes,
		EmbeddingModel: report.EmbeddingModel,
		EmbeddingDim:   report.EmbeddingDim,
		UptimeSeconds:  report.UptimeSeconds,
	}
	if report.SyncStatus != nil {
		label := fmt.Sprintf("owner=%s pending=%d", report.SyncStatus.Owner, report.SyncStatus.Pending)
		result.SyncStatus = &label
	}
	return result, nil
}

// Stats implements memory_stats (spec §6.1, no input).
func (s *Server) Stats(ctx context.Context) (*StatsResult, error) {
	stats, serr := s.svc.Stats(ctx)
	if serr != nil {
		return &StatsResult{Success: false}, nil
	}
	return &StatsResult{
		Success:         true,
		TotalMemories:   stats.TotalMemories,
		CreatedThisWeek: stats.CreatedThisWeek,
		UniqueTagCount:  stats.UniqueTagCount,
		DBSizeBytes:     stats.DBSizeBytes,
		EmbeddingModel:  stats.EmbeddingModel,
		EmbeddingDim:    stats.EmbeddingDim,
	}, nil
}

// ---------------------------------------------------------------------------
// JSON-RPC dispatch plumbing
// ---------------------------------------------------------------------------

func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities:    MCPServerCapabilities{Tools: &MCPToolsCapability{}},
		ServerInfo:      MCPServerInfo{Name: "memvault", Version: "1.0.0"},
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the matching native
// handler and wraps the result in the MCP content envelope. Legacy tool
// names are resolved the same way HandleRequest resolves legacy methods.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	var rawParams interface{}
	if err := json.Unmarshal(argsJSON, &rawParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	name := p.Name
	if canonical, deprecated := legacyToolNames[name]; deprecated {
		log.Warn().Str("legacy_tool", name).Str("forwarded_to", canonical).
			Msg("mcp: deprecated tool name used, forwarding to unified handler")
		name = canonical
	}

	var result interface{}
	var handlerErr error

	switch name {
	case "memory_store":
		result, handlerErr = s.handleStore(ctx, rawParams)
	case "memory_search":
		result, handlerErr = s.handleSearch(ctx, rawParams)
	case "memory_list":
		result, handlerErr = s.handleList(ctx, rawParams)
	case "memory_delete":
		result, handlerErr = s.handleDelete(ctx, rawParams)
	case "memory_update":
		result, handlerErr = s.handleUpdate(ctx, rawParams)
	case "memory_consolidate":
		result, handlerErr = s.handleConsolidate(ctx, rawParams)
	case "memory_quality":
		result, handlerErr = s.handleQuality(ctx, rawParams)
	case "memory_graph":
		result, handlerErr = s.handleGraph(ctx, rawParams)
	case "memory_ingest":
		result, handlerErr = s.handleIngest(ctx, rawParams)
	case "memory_health":
		result, handlerErr = s.handleHealth(ctx, rawParams)
	case "memory_stats":
		result, handlerErr = s.handleStats(ctx, rawParams)
	default:
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	if handlerErr != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: handlerErr.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{Content: []MCPToolCallContent{{Type: "text", Text: string(text)}}}, nil
}

func (s *Server) handleStore(ctx context.Context, params interface{}) (interface{}, error) {
	var args StoreArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Store(ctx, args)
}

func (s *Server) handleSearch(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Search(ctx, args)
}

func (s *Server) handleList(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.List(ctx, args)
}

func (s *Server) handleDelete(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Delete(ctx, args)
}

func (s *Server) handleUpdate(ctx context.Context, params interface{}) (interface{}, error) {
	var args UpdateArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Update(ctx, args)
}

func (s *Server) handleConsolidate(ctx context.Context, params interface{}) (interface{}, error) {
	var args ConsolidateArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Consolidate(ctx, args)
}

func (s *Server) handleQuality(ctx context.Context, params interface{}) (interface{}, error) {
	var args QualityArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Quality(ctx, args)
}

func (s *Server) handleGraph(ctx context.Context, params interface{}) (interface{}, error) {
	var args GraphArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Graph(ctx, args)
}

func (s *Server) handleIngest(ctx context.Context, params interface{}) (interface{}, error) {
	var args IngestArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.Ingest(ctx, args)
}

func (s *Server) handleHealth(ctx context.Context, params interface{}) (interface{}, error) {
	return s.Health(ctx)
}

func (s *Server) handleStats(ctx context.Context, params interface{}) (interface{}, error) {
	return s.Stats(ctx)
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &JSONRPCError{Code: code, Message: message, Data: data},
		ID:      id,
	})
}

// toolAnnotation sets readOnlyHint/destructiveHint per spec §6.1 schema rules.
func toolAnnotation(readOnly, destructive bool) map[string]interface{} {
	return map[string]interface{}{
		"readOnlyHint":   readOnly,
		"destructiveHint": destructive,
	}
}

var tagsSchema = map[string]interface{}{
	"oneOf": []interface{}{
		map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		map[string]interface{}{"type": "string"},
	},
}

// buildToolsList returns the canonical list of MCP tool definitions for the
// eleven unified tools (spec §6.1).
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "memory_store",
			Description: "Store a new memory. Duplicate content is deduplicated by content hash; oversized content is chunked automatically.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"content"},
				"properties": map[string]interface{}{
					"content":         map[string]interface{}{"type": "string"},
					"tags":            tagsSchema,
					"memory_type":     map[string]interface{}{"type": "string"},
					"metadata":        map[string]interface{}{"type": "object"},
					"client_hostname": map[string]interface{}{"type": "string"},
				},
				"annotations": toolAnnotation(false, false),
			},
		},
		{
			Name:        "memory_search",
			Description: "Search memories by semantic similarity, exact content match, or hybrid ranking, with optional quality-boosted re-ranking.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query":          map[string]interface{}{"type": "string"},
					"limit":          map[string]interface{}{"type": "integer"},
					"mode":           map[string]interface{}{"type": "string", "enum": []string{"semantic", "exact", "hybrid"}},
					"tags":           tagsSchema,
					"before":         map[string]interface{}{"type": "number"},
					"after":          map[string]interface{}{"type": "number"},
					"quality_boost":  map[string]interface{}{"type": "boolean"},
					"quality_weight": map[string]interface{}{"type": "number"},
				},
				"annotations": toolAnnotation(true, false),
			},
		},
		{
			Name:        "memory_list",
			Description: "List memories in reverse-chronological order with optional tag/memory_type filters, paginated.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"page":        map[string]interface{}{"type": "integer"},
					"page_size":   map[string]interface{}{"type": "integer"},
					"tag":         map[string]interface{}{"type": "string"},
					"memory_type": map[string]interface{}{"type": "string"},
				},
				"annotations": toolAnnotation(true, false),
			},
		},
		{
			Name:        "memory_delete",
			Description: "Delete memories by content_hash, tag match, or time window. Supports dry_run to preview the affected count without deleting.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content_hash": map[string]interface{}{"type": "string"},
					"tags":         tagsSchema,
					"tag_match":    map[string]interface{}{"type": "string", "enum": []string{"any", "all"}},
					"before":       map[string]interface{}{"type": "number"},
					"after":        map[string]interface{}{"type": "number"},
					"dry_run":      map[string]interface{}{"type": "boolean"},
				},
				"annotations": toolAnnotation(false, true),
			},
		},
		{
			Name:        "memory_update",
			Description: "Update a memory's tags, memory_type, metadata, or quality fields without touching its created_at timestamp.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"content_hash", "updates"},
				"properties": map[string]interface{}{
					"content_hash": map[string]interface{}{"type": "string"},
					"updates":      map[string]interface{}{"type": "object"},
				},
				"annotations": toolAnnotation(false, false),
			},
		},
		{
			Name:        "memory_consolidate",
			Description: "Drive the consolidation engine: run a pass, check status, list recommendations, or pause/resume consolidation (pause also stops the background scheduler; resume does not restart it).",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"action"},
				"properties": map[string]interface{}{
					"action":  map[string]interface{}{"type": "string", "enum": []string{"run", "status", "recommend", "scheduler", "pause", "resume"}},
					"horizon": map[string]interface{}{"type": "string", "enum": []string{"daily", "weekly", "monthly"}},
				},
				"annotations": toolAnnotation(false, false),
			},
		},
		{
			Name:        "memory_quality",
			Description: "Compute or read a memory's quality score, or analyze the quality distribution across the whole store.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"action"},
				"properties": map[string]interface{}{
					"action":       map[string]interface{}{"type": "string", "enum": []string{"rate", "get", "analyze"}},
					"content_hash": map[string]interface{}{"type": "string"},
					"rating":       map[string]interface{}{"type": "number"},
					"feedback":     map[string]interface{}{"type": "string"},
				},
				"annotations": toolAnnotation(false, false),
			},
		},
		{
			Name:        "memory_graph",
			Description: "Traverse the memory association graph: connected memories within N hops, the shortest path between two memories, a radius subgraph, or a memory's evolution chain (supersedes edges).",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"action", "hash"},
				"properties": map[string]interface{}{
					"action":     map[string]interface{}{"type": "string", "enum": []string{"connected", "path", "subgraph", "evolution_chain"}},
					"hash":       map[string]interface{}{"type": "string"},
					"other_hash": map[string]interface{}{"type": "string"},
					"hops":       map[string]interface{}{"type": "integer"},
					"radius":     map[string]interface{}{"type": "integer"},
					"direction":  map[string]interface{}{"type": "string", "enum": []string{"out", "in", "both"}},
				},
				"annotations": toolAnnotation(true, false),
			},
		},
		{
			Name:        "memory_ingest",
			Description: "Ingest a file or directory on disk, chunking large files and storing each piece as a memory.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"path"},
				"properties": map[string]interface{}{
					"path":          map[string]interface{}{"type": "string"},
					"tags":          tagsSchema,
					"chunk_size":    map[string]interface{}{"type": "integer"},
					"chunk_overlap": map[string]interface{}{"type": "integer"},
				},
				"annotations": toolAnnotation(false, false),
			},
		},
		{
			Name:        "memory_health",
			Description: "Report backend connectivity, memory count, DB size, embedding model/dimension, uptime, and (for a hybrid backend) sync status.",
			InputSchema: map[string]interface{}{
				"type":        "object",
				"properties":  map[string]interface{}{},
				"annotations": toolAnnotation(true, false),
			},
		},
		{
			Name:        "memory_stats",
			Description: "Report aggregate storage statistics: total memories, memories created this week, unique tag count, DB size.",
			InputSchema: map[string]interface{}{
				"type":        "object",
				"properties":  map[string]interface{}{},
				"annotations": toolAnnotation(true, false),
			},
		},
	}
}

