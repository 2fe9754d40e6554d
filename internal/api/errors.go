// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/tvbroker/internal/broker"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a generic error response.
func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeUnauthorized writes a 401 Unauthorized response.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// writeBrokerError maps broker error taxonomy to HTTP status codes.
func writeBrokerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, broker.ErrProviderNotFound),
		errors.Is(err, broker.ErrSessionNotFound),
		errors.Is(err, broker.ErrClientNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, broker.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, broker.ErrReconnecting),
		errors.Is(err, broker.ErrBackendUnavailable),
		errors.Is(err, broker.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, broker.ErrSessionNotReady):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}
