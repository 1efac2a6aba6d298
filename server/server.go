// Package server exposes the chat engine over HTTP: REST endpoints for
// generation and memory management, and a WebSocket endpoint for
// streaming responses.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mnemolabs/mnemo/auth"
	"github.com/mnemolabs/mnemo/engine"
	"github.com/mnemolabs/mnemo/logging"
)

// Server is the HTTP surface.
type Server struct {
	router   *chi.Mux
	engine   *engine.Engine
	verifier auth.Verifier
	users    UserRegistry
	origins  []string
}

// Option configures the server.
type Option func(*Server)

// WithVerifier switches the server into authenticated-identity mode:
// every request resolves its owner from the bearer token, and client
// session ids are ignored. Without a verifier the server runs in session
// mode, scoping memory by a client-supplied or generated session id.
func WithVerifier(v auth.Verifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

// WithUserRegistry sets the backing store for /api/storeUser.
func WithUserRegistry(r UserRegistry) Option {
	return func(s *Server) {
		s.users = r
	}
}

// WithAllowedOrigins sets the CORS allowed origins. Default: any.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates the server and mounts all routes.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		engine: eng,
		users:  NewMemoryRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Delete("/clear-collection", s.handleClearCollection)
	r.Post("/api/storeUser", s.handleStoreUser)
	r.Get("/ws", s.handleWS)

	return s
}

// checkOrigin applies the configured allowed origins to the websocket
// handshake. The CORS middleware does not cover websocket upgrades, so
// the handshake enforces the same policy itself. Requests without an
// Origin header (non-browser clients) are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger logs one line per request.
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
