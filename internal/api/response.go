package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response wraps every API reply.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Response statuses
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
	StatusError    = "error"
)

// Error codes
const (
	CodeBadRequest        = "bad_request"
	CodeNotFound          = "not_found"
	CodeNotAFile          = "not_a_file"
	CodeNotADirectory     = "not_a_directory"
	CodeDestinationExists = "destination_exists"
	CodeDestinationInside = "destination_inside_source"
	CodeInvalidFilter     = "invalid_filter"
	CodePermission        = "permission_denied"
	CodeConfig            = "config_invalid"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal"
)

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func okResponse(data any) Response {
	return Response{Status: StatusOK, Timestamp: time.Now().UTC(), Data: data}
}

func rejectedResponse(data any) Response {
	return Response{Status: StatusRejected, Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(code, msg string) Response {
	return Response{Status: StatusError, Timestamp: time.Now().UTC(), Code: code, Error: msg}
}
