package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(handler *Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())
	router.Use(recoveryMiddleware(logger))

	// Health check and metrics endpoints
	router.HandleFunc("/health", handler.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Quest catalog
	api.HandleFunc("/quests/categories", handler.HandleCategories).Methods(http.MethodGet)
	api.HandleFunc("/quests/contracts", handler.HandleContracts).Methods(http.MethodGet)

	// Quest wizard sessions
	api.HandleFunc("/quests/sessions", handler.HandleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/quests/sessions/{id}", handler.HandleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/quests/sessions/{id}", handler.HandleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/quests/sessions/{id}/fields", handler.HandleUpdateField).Methods(http.MethodPatch)
	api.HandleFunc("/quests/sessions/{id}/step", handler.HandleSetStep).Methods(http.MethodPost)
	api.HandleFunc("/quests/sessions/{id}/validate", handler.HandleValidate).Methods(http.MethodGet)
	api.HandleFunc("/quests/sessions/{id}/image", handler.HandleUploadImage).Methods(http.MethodPost)
	api.HandleFunc("/quests/sessions/{id}/image", handler.HandleRemoveImage).Methods(http.MethodDelete)
	api.HandleFunc("/quests/sessions/{id}/reset", handler.HandleResetForm).Methods(http.MethodPost)
	api.HandleFunc("/quests/sessions/{id}/submit", handler.HandleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/quests/sessions/{id}/review", handler.HandleReview).Methods(http.MethodGet)

	// Feed
	api.HandleFunc("/feed/generators", handler.HandleGenerators).Methods(http.MethodGet)
	api.HandleFunc("/feed/{channel}/ws", handler.HandleFeedStream).Methods(http.MethodGet)
	api.HandleFunc("/feed/{channel}/publish", handler.HandlePublish).Methods(http.MethodPost)
	api.HandleFunc("/feed/{channel}/random", handler.HandleStartRandomData).Methods(http.MethodPost)
	api.HandleFunc("/feed/{channel}/random", handler.HandleStopRandomData).Methods(http.MethodDelete)

	// Profiles
	api.HandleFunc("/profiles", handler.HandleListProfiles).Methods(http.MethodGet)
	api.HandleFunc("/profiles", handler.HandleCreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{id}", handler.HandleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id}", handler.HandleUpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{id}", handler.HandleDeleteProfile).Methods(http.MethodDelete)

	// Founder points
	api.HandleFunc("/founders", handler.HandleCreateFounder).Methods(http.MethodPost)
	api.HandleFunc("/founders/{name}", handler.HandleGetFounder).Methods(http.MethodGet)
	api.HandleFunc("/founders/{name}/allocate", handler.HandleAllocatePoints).Methods(http.MethodPost)
	api.HandleFunc("/founders/{name}/distribute", handler.HandleDistributePoints).Methods(http.MethodPost)
	api.HandleFunc("/founders/{name}/convert", handler.HandleConvertPoints).Methods(http.MethodPost)
	api.HandleFunc("/founders/{name}/claim", handler.HandleClaimRewards).Methods(http.MethodPost)
	api.HandleFunc("/points/contracts", handler.HandleContractPoints).Methods(http.MethodGet)

	return router
}

// ==================== Middleware ====================

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the feed stream upgrade through the logging wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// corsMiddleware adds CORS headers
func corsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Dashboards are served from any origin
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware recovers from panics and logs them
func recoveryMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)

					// Send error response
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"Internal server error","message":"An unexpected error occurred"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
