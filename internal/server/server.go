/*
PURPOSE:
  HTTP boundary for Forecast Runner. Accepts script and CSV uploads,
  hands them to the engine and returns outcomes as JSON.

REQUIREMENTS:
  User-specified:
  - Single-dataset runs and multi-dataset benchmarks over multipart uploads.
  - Starter template download, CSV column discovery, run history.

  Implementation-discovered:
  - Caller identity comes from the X-User header set by the fronting proxy.
  - A shared token bucket keeps one caller from monopolizing the
    (sequential) engine.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli/serve.go
  - Uses: internal/engine, internal/dataset, internal/storage, internal/assets

ERROR HANDLING:
  - Request problems are 4xx with {"error": "..."}.
  - Per-pair failures are part of a 200 response, never an HTTP error.

IMPLEMENTATION RULES:
  - Routes use net/http method patterns.
  - Uploads are bounded by MaxUploadMB.

USAGE:
  srv := server.New(cfg, eng, store)
  err := srv.ListenAndServe(ctx)

RELATED FILES:
  - internal/server/handlers.go
*/

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/daryltucker/forecast-runner/internal/config"
	"github.com/daryltucker/forecast-runner/internal/engine"
	"github.com/daryltucker/forecast-runner/internal/output"
	"github.com/daryltucker/forecast-runner/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// UserHeader carries the caller identity.
const UserHeader = "X-User"

type ctxKey struct{}

// Server serves the forecasting API.
type Server struct {
	Addr string

	engine    *engine.Engine
	store     storage.Store
	limiter   *rate.Limiter
	maxUpload int64
	log       zerolog.Logger
}

// New creates a Server. store may be nil, in which case history is empty.
func New(cfg *config.Config, e *engine.Engine, store storage.Store) *Server {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Server{
		Addr:      cfg.ListenAddr,
		engine:    e,
		store:     store,
		limiter:   rate.NewLimiter(limit, burst),
		maxUpload: cfg.MaxUploadMB << 20,
		log:       output.Component("server"),
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/forecast/template", s.handleTemplate)
	mux.HandleFunc("POST /api/forecast/csv-columns", s.handleColumns)
	mux.Handle("POST /api/forecast/run", s.limited(s.requireUser(http.HandlerFunc(s.handleRun))))
	mux.Handle("POST /api/forecast/benchmark", s.limited(s.requireUser(http.HandlerFunc(s.handleBenchmark))))
	mux.Handle("GET /api/forecast/benchmark-results", s.requireUser(http.HandlerFunc(s.handleHistory)))
	return s.logged(mux)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func (s *Server) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}

func userFrom(ctx context.Context) string {
	user, _ := ctx.Value(ctxKey{}).(string)
	return user
}
