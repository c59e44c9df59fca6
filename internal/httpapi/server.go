// Package httpapi serves search over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DreamCats/caseindex/internal/metrics"
	"github.com/DreamCats/caseindex/internal/resilience"
	"github.com/DreamCats/caseindex/internal/search"
	"github.com/DreamCats/caseindex/internal/store"
)

const maxBodyBytes = 1 << 20

// Searcher answers one query.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Server is the HTTP API for one open index.
type Server struct {
	router   chi.Router
	searcher Searcher
	status   search.Status
	metrics  *metrics.Metrics
}

// NewServer builds the router; m may be nil.
func NewServer(searcher Searcher, status search.Status, m *metrics.Metrics) *Server {
	s := &Server{searcher: searcher, status: status, metrics: m}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.metrics.Middleware(routePattern))
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Post("/v1/search", s.handleSearch)

	s.router = r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

type healthResponse struct {
	Status string        `json:"status"`
	Index  search.Status `json:"index"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Index: s.status})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req search.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.TopK < 0 || req.TopN < 0 {
		jsonError(w, "top_k and top_n must not be negative", http.StatusBadRequest)
		return
	}

	resp, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		code := statusForError(err)
		if code >= http.StatusInternalServerError {
			log.Printf("[http] request_id=%s search failed: %v", middleware.GetReqID(r.Context()), err)
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrStaleArtifacts), errors.Is(err, store.ErrNotIndexed):
		return http.StatusConflict
	default:
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[http] method=%s path=%s status=%d duration_ms=%d request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start).Milliseconds(), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
