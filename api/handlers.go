package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sourcer/models"
)

type estimateResponse struct {
	*models.EstimateResult
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req models.EstimateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	// An empty body is an empty request; it ends in the fallback estimate.
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		zap.L().Debug("rejecting malformed estimate request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result := s.estimator.Estimate(r.Context(), req)
	ts := result.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		EstimateResult: result,
		Timestamp:      formatTimestamp(ts),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      serviceName,
		"version":   serviceVersion,
		"status":    "running",
		"extractor": s.strategy,
		"endpoints": map[string]string{
			"estimate": "POST /estimate",
			"legacy":   "POST /api/estimateFromZillow",
			"health":   "GET /health",
		},
		"timestamp": formatTimestamp(s.now()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats reports run counts over ?window= (Go duration, default 24h).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "run telemetry is disabled")
		return
	}
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	since := s.now().Add(-window)
	stats, err := s.stats.RunStats(ctx, since)
	if err != nil {
		zap.L().Error("run stats query failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "run telemetry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since": formatTimestamp(since),
		"runs":  stats,
	})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFmt)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write json response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
