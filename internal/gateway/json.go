package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSON marshals v as the response body with the given status code,
// mirroring the teacher's own small writeJSON helper in server_ids.go.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON shape every user-visible failure carries:
// an error keyword, a human message, and a machine timestamp (spec.md
// §7's closing paragraph). Stack traces are never included.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, keyword, message string) {
	writeJSON(w, status, errorResponse{
		Error:     keyword,
		Message:   message,
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
