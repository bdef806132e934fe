// Package api provides common HTTP API utilities including error handling.
package api

import (
	"encoding/json"
	"net/http"
)

// Deterministic reason codes for stable error classification.
// These codes should remain stable across versions for client compatibility.
const (
	// Request validation
	ReasonInvalidJSON     = "invalid_json"
	ReasonMissingField    = "missing_field"
	ReasonInvalidField    = "invalid_field"
	ReasonInvalidUsername = "invalid_username"

	// Authentication
	ReasonUnauthorized = "unauthorized"
	ReasonForbidden    = "forbidden"

	// Server and upstream errors
	ReasonStorageFailure      = "storage_failure"
	ReasonUpstreamUnavailable = "upstream_unavailable"
)

// ErrorEnvelope is the standard error response format.
// All error responses should use this structure for consistency.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "forbidden")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteError writes a standardized JSON error response.
// Messages are generic by policy: internal error detail never goes to clients.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusForbidden, reasonCode, message)
}

// WriteStorageFailure writes a 500 for a failed store operation.
func WriteStorageFailure(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, ReasonStorageFailure, "storage operation failed")
}

// WriteBadGateway writes a 502 for an unreachable upstream.
func WriteBadGateway(w http.ResponseWriter) {
	WriteError(w, http.StatusBadGateway, ReasonUpstreamUnavailable, "upstream unavailable")
}
