package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/rotation"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorDetail writes a JSON error response with detail.
func WriteErrorDetail(w http.ResponseWriter, status int, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Detail: detail})
}

// WriteDomainError maps domain errors to HTTP responses. The no-keys case
// gets a stable error code so the UI can prompt for a key instead of showing
// a generic failure.
func WriteDomainError(w http.ResponseWriter, err error) {
	var exhausted *rotation.ExhaustedError

	switch {
	case errors.Is(err, keystore.ErrEmptyKey):
		WriteError(w, http.StatusBadRequest, "key must not be empty")
	case errors.Is(err, keystore.ErrDuplicate):
		WriteError(w, http.StatusConflict, "key already exists for this provider")
	case errors.Is(err, rotation.ErrNoKeys):
		WriteError(w, http.StatusConflict, "no_keys_available")
	case errors.As(err, &exhausted):
		WriteErrorDetail(w, http.StatusBadGateway, "generation_failed", exhausted.Error())
	case errors.Is(err, project.ErrSegmentNotFound):
		WriteError(w, http.StatusNotFound, "segment not found")
	case errors.Is(err, gen.ErrEmptyScript):
		WriteError(w, http.StatusBadRequest, "script must not be empty")
	case errors.Is(err, gen.ErrBatchRunning):
		WriteError(w, http.StatusConflict, "batch_already_running")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// QueryString extracts a non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", false
	}
	return v, true
}

// QueryStringList extracts a comma-separated list of strings from a query param.
func QueryStringList(r *http.Request, name string) []string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	var result []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
