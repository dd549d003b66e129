package mockserver

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes data as the JSON response body.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondDetail writes the backend's error envelope.
func respondDetail(w http.ResponseWriter, status int, detail any) {
	respondJSON(w, status, map[string]any{"detail": detail})
}

// respondViolations writes a job validation failure: detail is a JSON string
// mapping field names to messages.
func respondViolations(w http.ResponseWriter, violations map[string]string) {
	b, _ := json.Marshal(violations)
	respondDetail(w, http.StatusUnprocessableEntity, string(b))
}
