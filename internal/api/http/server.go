package http

import (
	"net/http"

	"github.com/memvault/memvault/internal/config"
	"github.com/memvault/memvault/internal/consolidation"
	"github.com/memvault/memvault/internal/hybrid"
	"github.com/memvault/memvault/internal/quality"
	"github.com/memvault/memvault/internal/service"
)

// Server is the REST surface wrapping a single internal/service.Service
// (spec §6.2). hybridEngine and consolidator are optional: sync and
// consolidation endpoints 404 when the active backend/deployment doesn't
// have them, matching spec §4.4.8's "return 404/400 on non-hybrid backends".
type Server struct {
	svc             *service.Service
	hybridEngine    *hybrid.Engine
	consolidator    *consolidation.Consolidator
	qualityProvider quality.Provider
	cfg             *config.Config
	eventHub        *EventHub
}

// Option configures a Server.
type Option func(*Server)

// WithHybridEngine enables the /api/sync/* endpoints.
func WithHybridEngine(e *hybrid.Engine) Option {
	return func(s *Server) { s.hybridEngine = e }
}

// WithConsolidator enables the consolidation status/trigger surface.
func WithConsolidator(c *consolidation.Consolidator) Option {
	return func(s *Server) { s.consolidator = c }
}

// WithQualityProvider sets the provider used by rate/evaluate endpoints,
// defaulting to quality.NewImplicit() (spec §6.3: implicit is a valid
// default, not an error condition).
func WithQualityProvider(p quality.Provider) Option {
	return func(s *Server) { s.qualityProvider = p }
}

// WithEventHub enables GET /api/events, pushing memory store/delete
// notifications to connected WebSocket clients. The caller is responsible
// for running hub.Run() in a goroutine and calling hub.Stop() on shutdown.
func WithEventHub(hub *EventHub) Option {
	return func(s *Server) { s.eventHub = hub }
}

// New builds a Server over svc, applying opts. Grounded on the teacher's
// web/handlers package constructor shape (a struct of dependencies plus a
// functional-options list), matching internal/api/mcp.Server's own
// ServerOption convention for consistency across the two transports.
func New(svc *service.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{svc: svc, cfg: cfg, qualityProvider: quality.NewImplicit()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the full route table, wrapped in the shared middleware
// stack (spec §6.2, §7: access logging, security headers, optional bearer
// auth). Handler does not apply RateLimitMiddleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/memories", s.memoriesResource)
	mux.HandleFunc("/api/memories/", s.memoriesResource)

	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/search/by-tag", s.handleSearchByTag)
	mux.HandleFunc("/api/search/by-time", s.handleSearchByTime)

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/health/detailed", s.handleHealthDetailed)
	mux.HandleFunc("/api/stats", s.handleStats)

	mux.HandleFunc("/api/analytics/overview", s.handleAnalyticsOverview)
	mux.HandleFunc("/api/analytics/timeline", s.handleAnalyticsTimeline)
	mux.HandleFunc("/api/analytics/by-type", s.handleAnalyticsByType)

	mux.HandleFunc("/api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/sync/pause", s.handleSyncPause)
	mux.HandleFunc("/api/sync/resume", s.handleSyncResume)
	mux.HandleFunc("/api/sync/force", s.handleSyncForce)

	mux.HandleFunc("/api/quality/distribution", s.handleQualityDistribution)
	mux.HandleFunc("/api/quality/trends", s.handleQualityTrends)
	mux.HandleFunc("/api/quality/memories/", s.qualityMemoryResource)

	mux.HandleFunc("/api/consolidation/status", s.handleConsolidationStatus)
	mux.HandleFunc("/api/consolidation/run", s.handleConsolidationRun)
	mux.HandleFunc("/api/consolidation/recommendations", s.handleConsolidationRecommendations)

	mux.HandleFunc("/api/events", s.ServeWS)

	var handler http.Handler = mux
	handler = securityHeaders(handler)
	handler = accessLog(handler)
	if s.cfg != nil && s.cfg.Security.APIToken != "" {
		handler = RequireAuth(handler, s.cfg)
	}
	return handler
}
