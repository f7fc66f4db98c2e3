// Package v0 provides the REST API handlers for KYC status access.
package v0

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neartreasury/kyc-status-server/internal/kyc"
	"github.com/neartreasury/kyc-status-server/internal/versions"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Upstream failure bodies. Kept as short plain-text descriptions so callers
// can tell a database outage from a schema drift without parsing JSON.
const (
	upstreamErrorBody = "Database error"
	schemaErrorBody   = "Deserialization error"
)

// Routes defines the routes for the KYC status API with dependency injection
type Routes struct {
	service kyc.StatusService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc kyc.StatusService) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates a new router for the KYC status API
func Router(svc kyc.StatusService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/{account_id}", routes.getAccountStatus)

	return r
}

// getAccountStatus handles GET /kyc/{account_id}
//
// @Summary		Get account KYC status
// @Description	Resolve the KYC verification status for an account identifier
// @Tags			kyc
// @Produce		json
// @Param			account_id	path		string	true	"Account identifier"
// @Success		200			{object}	kyc.Resolution
// @Failure		400			{object}	ErrorResponse
// @Failure		500			{string}	string
// @Router			/kyc/{account_id} [get]
func (rr *Routes) getAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	res, err := rr.service.Resolve(r.Context(), accountID)
	if err != nil {
		rr.writeResolveError(w, err)
		return
	}

	rr.writeJSONResponse(w, res)
}

// writeResolveError translates resolver errors to HTTP responses. Invalid
// input is the caller's fault; upstream failures are a generic 500 with a
// short descriptive body and no partial result.
func (rr *Routes) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kyc.ErrInvalidAccountID):
		rr.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, kyc.ErrUpstreamUnavailable):
		http.Error(w, upstreamErrorBody, http.StatusInternalServerError)
	case errors.Is(err, kyc.ErrUpstreamSchemaMismatch):
		http.Error(w, schemaErrorBody, http.StatusInternalServerError)
	default:
		slog.Error("Unexpected resolver error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSONResponse writes a JSON response with the given data
func (rr *Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response
func (rr *Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc kyc.StatusService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if the KYC status API is healthy
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessHandler handles readiness check requests
//
// @Summary		Readiness check
// @Description	Check if the KYC status API is ready to serve requests
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Failure		503	{object}	ErrorResponse
// @Router			/readiness [get]
func readinessHandler(svc kyc.StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			errorResp := ErrorResponse{
				Error: "StatusService not ready: " + err.Error(),
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if encodeErr := json.NewEncoder(w).Encode(errorResp); encodeErr != nil {
				slog.Error("Failed to encode readiness error response", "error", encodeErr)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Description	Get version information about the KYC status API
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	response := map[string]string{
		"version":    info.Version,
		"commit":     info.Commit,
		"build_date": info.BuildDate,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode version info", "error", err)
	}
}
