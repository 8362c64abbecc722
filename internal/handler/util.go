package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sline-ai/agent-gateway/internal/middleware"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response. The request's correlation id is
// echoed so clients can quote it when reporting failures.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := map[string]string{"error": message}
	if id := middleware.GetCorrelationID(r.Context()); id != "" {
		body["correlationId"] = id
	}
	writeJSON(w, status, body)
}
