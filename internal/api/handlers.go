package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fargoat/internal/client"
	"fargoat/internal/feed"
	"fargoat/internal/metrics"
	"fargoat/internal/quest"
	"fargoat/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Pinger checks an optional backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessions *service.SessionService
	profiles *service.ProfileService
	points   *service.PointsLedger
	hub      *feed.Hub
	series   *feed.Series
	db       Pinger
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHandler creates a new API handler. db may be nil when profiles are
// kept in memory.
func NewHandler(
	sessions *service.SessionService,
	profiles *service.ProfileService,
	points *service.PointsLedger,
	hub *feed.Hub,
	series *feed.Series,
	db Pinger,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions: sessions,
		profiles: profiles,
		points:   points,
		hub:      hub,
		series:   series,
		db:       db,
		metrics:  m,
		logger:   logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Database: "disabled",
	}
	if h.sessions != nil {
		response.Sessions = h.sessions.Len()
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Database ping failed", zap.Error(err))
			response.Status = "degraded"
			response.Database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	respondJSON(w, status, response)
}

// ==================== Helper Functions ====================

// decodeJSON decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't send response since headers already written
		zap.L().Error("Failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}

// respondServiceError maps service and engine errors to HTTP responses
func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	var incomplete *quest.IncompleteError
	var submitErr *client.SubmitError

	switch {
	case errors.As(err, &incomplete):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   message,
			Message: incomplete.Error(),
			Fields:  incomplete.Errors,
		})
	case errors.As(err, &submitErr):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   message,
			Message: submitErr.Message,
		})
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, quest.ErrInvalidValue),
		errors.Is(err, quest.ErrInactiveField),
		errors.Is(err, quest.ErrReadOnlyField),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, service.ErrInvalidPoints):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, quest.ErrStepNotReachable),
		errors.Is(err, quest.ErrSubmitInProgress),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrFounderExists),
		errors.Is(err, service.ErrFounderInactive),
		errors.Is(err, service.ErrNoRewards):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, service.ErrInsufficientPoints):
		respondError(w, http.StatusUnprocessableEntity, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		respondError(w, http.StatusInternalServerError, message, err)
	}
}
