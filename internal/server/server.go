// Package server exposes the HTTP API: authentication, node and root
// administration, workspace lifecycle, object traffic through resolved
// storage backends, and search passthrough.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wsio/wsio/internal/auth"
	"github.com/wsio/wsio/internal/index"
	"github.com/wsio/wsio/internal/logger"
	"github.com/wsio/wsio/internal/metrics"
	"github.com/wsio/wsio/internal/resolver"
	"github.com/wsio/wsio/internal/store"
	"github.com/wsio/wsio/internal/workspace"
)

// Server wires the application services behind the REST API.
type Server struct {
	log        *logger.Logger
	auth       *auth.Service
	access     *resolver.Access
	workspaces *workspace.Service
	store      store.Store

	// search and indexer are nil when no search nodes are configured;
	// object traffic works without them.
	search  *index.Client
	indexer *index.Indexer
}

// Deps collects everything the Server needs.
type Deps struct {
	Log        *logger.Logger
	Auth       *auth.Service
	Access     *resolver.Access
	Workspaces *workspace.Service
	Store      store.Store
	Search     *index.Client
	Indexer    *index.Indexer
}

// New creates a Server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		log:        d.Log,
		auth:       d.Auth,
		access:     d.Access,
		workspaces: d.Workspaces,
		store:      d.Store,
		search:     d.Search,
		indexer:    d.Indexer,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Post("/auth/apikeys", s.handleIssueAPIKey)

			r.Post("/nodes", s.handleCreateNode)
			r.Get("/nodes", s.handleListNodes)
			r.Get("/nodes/{name}", s.handleGetNode)
			r.Delete("/nodes/{name}", s.handleDeleteNode)
			r.Post("/nodes/{name}/roots", s.handleCreateRoot)
			r.Get("/roots", s.handleListRoots)

			r.Post("/workspaces", s.handleCreateWorkspace)
			r.Get("/workspaces", s.handleListWorkspaces)
			r.Get("/workspaces/{id}", s.handleGetWorkspace)
			r.Delete("/workspaces/{id}", s.handleDeleteWorkspace)
			r.Post("/workspaces/{id}/shares", s.handleCreateShare)

			r.Get("/objects/{bucket}/*", s.handleGetObject)
			r.Head("/objects/{bucket}/*", s.handleStatObject)
			r.Put("/objects/{bucket}/*", s.handlePutObject)
			r.Delete("/objects/{bucket}/*", s.handleDeleteObject)
			r.Get("/list/{bucket}/*", s.handleListObjects)
			r.Get("/presign/download/{bucket}/*", s.handlePresignDownload)
			r.Get("/presign/upload/{bucket}/*", s.handlePresignUpload)

			r.Post("/search", s.handleSearch)
		})
	})

	return r
}

// observe logs each request and records its metrics under the route
// pattern rather than the raw path, keeping label cardinality bounded.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := s.log.WithContext(r.Context())
		next.ServeHTTP(ww, r.WithContext(ctx))

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), elapsed)

		s.log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Logger().
			Info("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.search != nil {
		if err := s.search.Ping(r.Context()); err != nil {
			status["search"] = "unreachable"
		} else {
			status["search"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search is not configured"})
		return
	}

	query, err := decodeRaw(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.search.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(result)
}

func decodeRaw(r *http.Request) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.With().Str("addr", addr).Logger().Info("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
