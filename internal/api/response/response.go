package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// JSON sends a JSON response. Encoding errors are returned for the caller
// to log; the status line is already written at that point.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response. details lists the individual messages
// of an aggregated error.
func Error(w http.ResponseWriter, statusCode int, message string, details ...string) error {
	return JSON(w, statusCode, ErrorResponse{Error: message, Errors: details})
}
