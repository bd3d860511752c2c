package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yourusername/shin/internal/models"
	"github.com/yourusername/shin/internal/odds"
	"github.com/yourusername/shin/internal/service"
	"github.com/yourusername/shin/internal/shin"
)

const maxRequestBytes = 1 << 20

type requestIDKey struct{}

func withRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// handleHealth handles the /health endpoint - basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   s.serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Commit:    s.commit,
	})
}

// handleLive handles the /live endpoint - kubernetes liveness check.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.serviceName,
	})
}

// handleReady handles the /ready endpoint - checks database connectivity.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	allHealthy := true

	if !s.IsReady() {
		allHealthy = false
		checks["service"] = "not_ready"
	} else {
		checks["service"] = "ok"
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := s.db.Ping(ctx); err != nil {
			allHealthy = false
			checks["database"] = fmt.Sprintf("error: %v", err)
		} else {
			checks["database"] = "ok"
		}
	}

	response := ReadyResponse{
		Service:  s.serviceName,
		Checks:   checks,
		Duration: time.Since(start).String(),
	}

	status := http.StatusOK
	response.Status = "ok"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		response.Status = "not_ready"
	}
	writeJSON(w, status, response)
}

// handleImpliedProbabilities handles POST /v1/implied-probabilities.
func (s *Server) handleImpliedProbabilities(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	var req ImpliedProbabilitiesRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, validationMessage(err))
		return
	}

	prices, err := odds.ParsePrices(req.Odds)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, err.Error())
		return
	}

	var opts []shin.Option
	if req.MaxIterations != nil {
		opts = append(opts, shin.WithMaxIterations(*req.MaxIterations))
	}
	if req.ConvergenceThreshold != nil {
		opts = append(opts, shin.WithConvergenceThreshold(*req.ConvergenceThreshold))
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	result, err := s.calculator.Calculate(ctx, prices, opts...)
	switch {
	case err == nil, errors.Is(err, service.ErrNonFinite) && result != nil:
		writeJSON(w, http.StatusOK, NewImpliedProbabilitiesResponse(requestID, result))
	case errors.Is(err, shin.ErrTooFewOdds), errors.Is(err, shin.ErrInvalidOdds):
		writeError(w, http.StatusBadRequest, requestID, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, requestID, "calculation timed out")
	default:
		s.logger.WithError(err).WithField("request_id", requestID).Error("Calculation failed")
		writeError(w, http.StatusInternalServerError, requestID, "internal error")
	}
}

// handleRaceProbabilities handles GET /v1/races/{id}/probabilities.
func (s *Server) handleRaceProbabilities(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, requestID, service.ErrNoDatabase.Error())
		return
	}

	rawID := r.PathValue("id")
	raceID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, requestID, fmt.Sprintf("%v: %q", models.ErrInvalidID, rawID))
		return
	}

	probabilities, err := s.store.LatestProbabilities(r.Context(), raceID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, NewRaceProbabilitiesResponse(requestID, raceID, probabilities))
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, requestID, fmt.Sprintf("no probabilities stored for race %s", raceID))
	case errors.Is(err, service.ErrNoDatabase):
		writeError(w, http.StatusServiceUnavailable, requestID, err.Error())
	default:
		s.logger.WithError(err).WithField("request_id", requestID).Error("Loading stored probabilities failed")
		writeError(w, http.StatusInternalServerError, requestID, "internal error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("field %s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("field %s failed %s", fe.Namespace(), fe.Tag())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, requestID, message string) {
	writeJSON(w, status, ErrorResponse{RequestID: requestID, Error: message})
}
