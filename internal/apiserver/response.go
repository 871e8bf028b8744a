// Package apiserver implements the HTTP surface: a Chi router exposing
// /healthz, /v1/execute, /v1/stats/execution, and /v1/environment directly,
// with no prefix and no authentication layer.
package apiserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shellforge/execd/internal/request"
)

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is the shape of every error response: a human message paired
// with a machine-readable code.
type errorBody struct {
	Error string       `json:"error"`
	Code  request.Code `json:"code"`
}

// writeError maps a *request.Error to its declared HTTP status; any other
// error is an unexpected internal failure and is reported as a generic 500
// without leaking its detail.
func writeError(w http.ResponseWriter, err error) {
	var reqErr *request.Error
	if errors.As(err, &reqErr) {
		JSON(w, reqErr.Status, errorBody{Error: reqErr.Message, Code: reqErr.Code})
		return
	}
	JSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL_ERROR"})
}

// readBody reads the full request body, bounded to protect against a client
// streaming an unbounded payload at the server.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return io.ReadAll(r.Body)
}

// maxRequestBytes bounds a single request body; large file payloads are
// expected to be split across multiple files/requests rather than one huge
// body.
const maxRequestBytes = 16 << 20
