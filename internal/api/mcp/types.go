// Package mcp implements the Model Context Protocol (MCP) JSON-RPC 2.0
// surface over the memory service (spec §6.1): eleven unified tools plus a
// compatibility layer forwarding 30+ deprecated legacy tool names.
package mcp

// StoreArgs contains arguments for the memory_store tool (spec §6.1).
// Tags accepts the oneOf{array,string} shape; normalization happens in
// internal/service.NormalizeTags, not here.
type StoreArgs struct {
	Content        string                 `json:"content"`
	Tags           interface{}            `json:"tags,omitempty"`
	MemoryType     string                 `json:"memory_type,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ClientHostname string                 `json:"client_hostname,omitempty"`
}

// StoreResult is the response shape for memory_store.
type StoreResult struct {
	Success      bool     `json:"success"`
	ContentHash  string   `json:"content_hash,omitempty"`
	Memory       *Memory  `json:"memory,omitempty"`
	Error        string   `json:"error,omitempty"`
	ChunksCreated int     `json:"chunks_created,omitempty"`
	ChunkHashes  []string `json:"chunk_hashes,omitempty"`
	FailedChunks int      `json:"failed_chunks,omitempty"`
}

// SearchArgs contains arguments for the memory_search tool.
type SearchArgs struct {
	Query         string      `json:"query"`
	Limit         int         `json:"limit,omitempty"`
	Mode          string      `json:"mode,omitempty"`
	Tags          interface{} `json:"tags,omitempty"`
	Before        *float64    `json:"before,omitempty"`
	After         *float64    `json:"after,omitempty"`
	QualityBoost  bool        `json:"quality_boost,omitempty"`
	QualityWeight float64     `json:"quality_weight,omitempty"`
}

// SearchResultItem pairs a memory with its similarity score.
type SearchResultItem struct {
	Memory          Memory   `json:"memory"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

// SearchResult is the response shape for memory_search.
type SearchResult struct {
	Success bool                `json:"success"`
	Results []SearchResultItem  `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// ListArgs contains arguments for the memory_list tool.
type ListArgs struct {
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
	Tag        string `json:"tag,omitempty"`
	MemoryType string `json:"memory_type,omitempty"`
}

// ListResult is the response shape for memory_list.
type ListResult struct {
	Success  bool     `json:"success"`
	Results  []Memory `json:"results"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int      `json:"total"`
	Error    string   `json:"error,omitempty"`
}

// DeleteArgs contains arguments for the memory_delete tool, a union of
// single-hash, tag-match, and timeframe deletion modes (spec §6.1).
type DeleteArgs struct {
	ContentHash string      `json:"content_hash,omitempty"`
	Tags        interface{} `json:"tags,omitempty"`
	TagMatch    string      `json:"tag_match,omitempty"` // "any" | "all"
	Before      *float64    `json:"before,omitempty"`
	After       *float64    `json:"after,omitempty"`
	DryRun      bool        `json:"dry_run,omitempty"`
}

// DeleteResult is the response shape for memory_delete.
type DeleteResult struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	DryRun       bool   `json:"dry_run,omitempty"`
	Error        string `json:"error,omitempty"`
}

// UpdateArgs contains arguments for the memory_update tool.
type UpdateArgs struct {
	ContentHash string                 `json:"content_hash"`
	Updates     map[string]interface{} `json:"updates"`
}

// UpdateResult is the response shape for memory_update.
type UpdateResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ConsolidateArgs contains arguments for the memory_consolidate tool.
// Action is one of run/status/recommend/scheduler/pause/resume.
type ConsolidateArgs struct {
	Action  string `json:"action"`
	Horizon string `json:"horizon,omitempty"`
}

// ConsolidateResult is the backend-specific payload memory_consolidate
// returns; fields are populated according to Action.
type ConsolidateResult struct {
	Success         bool                          `json:"success"`
	Status          *ConsolidationStatus          `json:"status,omitempty"`
	Run             *ConsolidationRunResult       `json:"run,omitempty"`
	Recommendations []ConsolidationRecommendation `json:"recommendations,omitempty"`
	Error           string                        `json:"error,omitempty"`
}

// ConsolidationStatus mirrors consolidation.Status for the wire format.
type ConsolidationStatus struct {
	Running     bool   `json:"running"`
	Paused      bool   `json:"paused"`
	LastRun     string `json:"last_run,omitempty"`
	LastHorizon string `json:"last_horizon,omitempty"`
}

// ConsolidationRunResult mirrors consolidation.RunResult for the wire format.
type ConsolidationRunResult struct {
	Horizon            string `json:"horizon"`
	MemoriesScored     int    `json:"memories_scored"`
	QualityBoosted     int    `json:"quality_boosted"`
	AssociationsFound  int    `json:"associations_found"`
	ClustersFound      int    `json:"clusters_found"`
	MemoriesArchived   int    `json:"memories_archived"`
}

// ConsolidationRecommendation mirrors consolidation.Recommendation.
type ConsolidationRecommendation struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// QualityArgs contains arguments for the memory_quality tool. Action is one
// of rate/get/analyze.
type QualityArgs struct {
	Action      string  `json:"action"`
	ContentHash string  `json:"content_hash,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Feedback    string  `json:"feedback,omitempty"`
}

// QualityResult is the backend-specific payload memory_quality returns.
type QualityResult struct {
	Success      bool           `json:"success"`
	Memory       *Memory        `json:"memory,omitempty"`
	Distribution map[string]int `json:"distribution,omitempty"`
	AverageScore *float64       `json:"average_score,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// GraphArgs contains arguments for the memory_graph tool. Action is one of
// connected/path/subgraph/evolution_chain.
type GraphArgs struct {
	Action    string `json:"action"`
	Hash      string `json:"hash"`
	OtherHash string `json:"other_hash,omitempty"`
	Hops      int    `json:"hops,omitempty"`
	Radius    int    `json:"radius,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// GraphResult is the graph payload memory_graph returns.
type GraphResult struct {
	Success   bool      `json:"success"`
	Connected []Memory  `json:"connected,omitempty"`
	Path      []string  `json:"path,omitempty"`
	Subgraph  *Subgraph `json:"subgraph,omitempty"`
	Evolution []Memory  `json:"evolution,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Subgraph mirrors storage.Subgraph for the wire format.
type Subgraph struct {
	Hashes []string    `json:"hashes"`
	Edges  []GraphEdge `json:"edges"`
}

// GraphEdge mirrors types.Association for the wire format.
type GraphEdge struct {
	SourceHash       string  `json:"source_hash"`
	TargetHash       string  `json:"target_hash"`
	RelationshipType string  `json:"relationship_type"`
	Similarity       float64 `json:"similarity"`
}

// IngestArgs contains arguments for the memory_ingest tool.
type IngestArgs struct {
	Path         string      `json:"path"`
	Tags         interface{} `json:"tags,omitempty"`
	ChunkSize    int         `json:"chunk_size,omitempty"`
	ChunkOverlap int         `json:"chunk_overlap,omitempty"`
}

// IngestResult is the response shape for memory_ingest.
type IngestResult struct {
	Success         bool           `json:"success"`
	MemoriesCreated int            `json:"memories_created"`
	Failures        []IngestFailed `json:"failures,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// IngestFailed mirrors service.IngestFailure for the wire format.
type IngestFailed struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// HealthResult is the response shape for memory_health (no input args).
type HealthResult struct {
	Success        bool    `json:"success"`
	BackendKind    string  `json:"backend_kind"`
	Connected      bool    `json:"connected"`
	MemoryCount    int64   `json:"memory_count"`
	DBSizeBytes    int64   `json:"db_size_bytes"`
	EmbeddingModel string  `json:"embedding_model"`
	EmbeddingDim   int     `json:"embedding_dim"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	SyncStatus     *string `json:"sync_status,omitempty"`
}

// StatsResult is the response shape for memory_stats (no input args).
type StatsResult struct {
	Success         bool   `json:"success"`
	TotalMemories   int64  `json:"total_memories"`
	CreatedThisWeek int64  `json:"created_this_week"`
	UniqueTagCount  int64  `json:"unique_tag_count"`
	DBSizeBytes     int64  `json:"db_size_bytes"`
	EmbeddingModel  string `json:"embedding_model"`
	EmbeddingDim    int    `json:"embedding_dim"`
}

// Memory is the wire shape every tool returns for a single memory record,
// snake_case per spec §6.2's JSON field naming rule.
type Memory struct {
	ContentHash string                 `json:"content_hash"`
	Content     string                 `json:"content"`
	Tags        []string               `json:"tags,omitempty"`
	MemoryType  string                 `json:"memory_type,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   float64                `json:"created_at"`
	UpdatedAt   float64                `json:"updated_at"`
	CreatedAtISO string                `json:"created_at_iso,omitempty"`
	UpdatedAtISO string                `json:"updated_at_iso,omitempty"`
}

// ---------------------------------------------------------------------------
// JSON-RPC 2.0 / MCP protocol types. Transport-generic; unchanged in shape
// from a standard MCP server implementation.
// ---------------------------------------------------------------------------

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
