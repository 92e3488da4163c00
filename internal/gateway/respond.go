package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/shopsync/internal/domain"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type ackBody struct {
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// errorTable maps the error taxonomy onto the wire. Order matters: the first
// match wins. Only 4xx entries expose the error text; 5xx entries send the
// fixed message.
var errorTable = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{domain.ErrDeviceNotConfigured, http.StatusServiceUnavailable, "DEVICE_NOT_CONFIGURED", "device is not provisioned"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", ""},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT", ""},
	{domain.ErrAlreadyCompleted, http.StatusBadRequest, "ALREADY_COMPLETED", ""},
	{domain.ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST", ""},
	{domain.ErrNetwork, http.StatusBadGateway, "NETWORK_FAILURE", "cloud backend unreachable"},
	{domain.ErrServerFault, http.StatusInternalServerError, "SERVER_FAULT", "cloud backend refused the request"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeAck(w http.ResponseWriter, message string, data map[string]string) {
	writeJSON(w, http.StatusOK, ackBody{Message: message, Data: data})
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.message
		if msg == "" {
			msg = err.Error()
		}
		if e.status >= http.StatusInternalServerError {
			s.logger.Error("request failed", "path", r.URL.Path, "code", e.code, "error", err)
		}
		writeErrorCode(w, e.status, e.code, msg)
		return
	}

	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrBadRequest, err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrBadRequest, err)
	}
	return nil
}
