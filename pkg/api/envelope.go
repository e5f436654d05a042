// api/envelope.go
package api

import (
	"encoding/json"
	"net/http"
)

// WriteSuccess emits the uniform success envelope:
// {"success":true,"data":<value>,"endpoint":"/module/function"}
func WriteSuccess(w http.ResponseWriter, endpoint string, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     data,
		"endpoint": endpoint,
	})
}

// WriteError emits the uniform failure envelope, flattening the error's
// context fields next to error/code/endpoint.
func WriteError(w http.ResponseWriter, endpoint string, e *Error) {
	body := map[string]any{
		"success":  false,
		"error":    e.Message,
		"code":     e.Kind,
		"endpoint": endpoint,
	}
	for k, v := range e.Context {
		body[k] = v
	}
	writeJSON(w, e.Status(), body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
