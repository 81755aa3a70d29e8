// Package api provides the HTTP API server and handlers for the Quaver
// music server.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quaverapp/quaver-server/internal/config"
	"github.com/quaverapp/quaver-server/internal/domain"
	"github.com/quaverapp/quaver-server/internal/hls"
	"github.com/quaverapp/quaver-server/internal/ratelimit"
	"github.com/quaverapp/quaver-server/internal/search"
)

// Streamer is the playlist and segment surface the handlers need.
type Streamer interface {
	GeneratePlaylist(ctx context.Context, itemID string, v hls.Variant, basePath string) (string, error)
	ServeSegment(key string) (path, mime string, err error)
}

// Library is the browse surface of the track store.
type Library interface {
	GetTrack(ctx context.Context, id string) (*domain.Track, error)
	ListDirectory(ctx context.Context, dirID string) ([]*domain.Track, error)
}

// Searcher runs free-text track queries.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]search.Hit, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg      config.ServerConfig
	streamer Streamer
	library  Library
	searcher Searcher
	limiter  *ratelimit.KeyedRateLimiter
	router   *chi.Mux
	logger   *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(cfg config.ServerConfig, streamer Streamer, library Library, searcher Searcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:      cfg,
		streamer: streamer,
		library:  library,
		searcher: searcher,
		limiter:  ratelimit.New(20, 40),
		router:   chi.NewRouter(),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Range"},
		MaxAge:         300,
	}))
	s.router.Use(s.rateLimit)
}

// setupRoutes configures all HTTP routes. The whole tree is mounted
// under the configured path base when running behind a reverse proxy.
func (s *Server) setupRoutes() {
	rest := func(r chi.Router) {
		r.Route("/rest", func(r chi.Router) {
			r.Get("/ping", s.handlePing)
			r.Get("/getMusicDirectory", s.handleGetMusicDirectory)
			r.Get("/search", s.handleSearch)
			r.Get("/stream/hls.m3u8", s.handleStreamPlaylist)
			r.Get("/stream/hls", s.handleStreamSegment)
		})
	}

	if s.cfg.PathBase != "" {
		s.router.Route(s.cfg.PathBase, rest)
		return
	}
	rest(s.router)
}
