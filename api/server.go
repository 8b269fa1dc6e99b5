// Package api serves the estimate endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"sourcer/config"
	"sourcer/models"
)

const (
	serviceName    = "Sourcer Backend API"
	serviceVersion = "1.0.0"

	maxRequestBody = 1 << 20
	timestampFmt   = "2006-01-02T15:04:05.000Z07:00"
)

// Estimator produces an estimate for every request. It never fails; extraction
// problems come back as a fallback result.
type Estimator interface {
	Estimate(ctx context.Context, req models.EstimateRequest) *models.EstimateResult
}

// StatsSource reports extraction run counts for the status endpoints.
type StatsSource interface {
	RunStats(ctx context.Context, since time.Time) (models.RunStats, error)
}

type Server struct {
	cfg       config.ServerConfig
	estimator Estimator
	stats     StatsSource
	strategy  models.FactSource
	router    *mux.Router
	now       func() time.Time
}

func NewServer(cfg config.ServerConfig, estimator Estimator, strategy models.FactSource) *Server {
	s := &Server{
		cfg:       cfg,
		estimator: estimator,
		strategy:  strategy,
		router:    mux.NewRouter(),
		now:       time.Now,
	}
	s.routes()
	return s
}

// SetStats enables GET /stats.
func (s *Server) SetStats(src StatsSource) {
	s.stats = src
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/estimate", s.handleEstimate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/estimateFromZillow", s.handleEstimate).Methods(http.MethodPost)
}

// Handler returns the router wrapped in CORS, request logging and panic recovery.
// CORS sits outermost so preflight requests never reach the method-matching router.
func (s *Server) Handler() http.Handler {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
	return corsHandler(s.logRequests(s.recoverPanics(s.router)))
}

// Run serves on cfg.Port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "api: listen")
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	zap.L().Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				zap.L().Error("panic in http handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", p),
					zap.Stack("stack"))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
