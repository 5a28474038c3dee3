package server

import (
	"encoding/json"
	"net/http"

	"github.com/fmueller/whisperd/internal/api"
)

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, api.ErrorResponse{Detail: msg}, status)
}

// httpError carries a status code from request parsing helpers to handlers.
type httpError struct {
	status int
	msg    string
	err    error
}

func (e *httpError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *httpError) Unwrap() error {
	return e.err
}
