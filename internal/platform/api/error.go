package api

import (
	"net/http"
	"sort"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

var statusDefaults = map[int]struct{ code, message string }{
	http.StatusBadRequest:          {"VALIDATION_FAILED", "invalid request"},
	http.StatusUnauthorized:        {"UNAUTHENTICATED", "authentication required"},
	http.StatusForbidden:           {"FORBIDDEN", "forbidden"},
	http.StatusNotFound:            {"NOT_FOUND", "not found"},
	http.StatusConflict:            {"CONFLICT", "conflict"},
	http.StatusServiceUnavailable:  {"UNAVAILABLE", "service unavailable"},
	http.StatusInternalServerError: {"INTERNAL", "Internal server error"},
}

// Error writes the envelope. An empty code or message is replaced by the
// default for status.
func Error(w http.ResponseWriter, status int, code, message, requestID string, details map[string]any) {
	def := statusDefaults[status]
	if code == "" {
		code = def.code
	}
	if message == "" {
		message = def.message
	}
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message, Details: details, RequestID: requestID}})
}

// FieldDetails turns per-field validation messages into envelope details,
// listing the offending fields under "fields" in sorted order.
func FieldDetails(fields map[string]string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		names = append(names, k)
		out[k] = v
	}
	sort.Strings(names)
	out["fields"] = names
	return out
}

func Unauthorized(w http.ResponseWriter, code, message, requestID string) {
	Error(w, http.StatusUnauthorized, code, message, requestID, nil)
}

func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	Error(w, http.StatusForbidden, code, message, requestID, nil)
}

// Internal never carries the underlying cause.
func Internal(w http.ResponseWriter, requestID string) {
	Error(w, http.StatusInternalServerError, "", "", requestID, nil)
}
