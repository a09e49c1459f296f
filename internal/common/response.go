package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload returned by the API. The browser reads the
// message from Error and falls back to a generic string when it is missing.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, message string, details any) {
	JSON(w, status, ErrorBody{Error: message, Details: details})
}

// JSONErrorWithCode renders an error response that also echoes the status in a code field.
func JSONErrorWithCode(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message, Code: status})
}

// MethodNotAllowed answers non-POST requests the same way for every API route.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	JSONError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
