package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tmdb-agent/internal/application/port/input"
	"tmdb-agent/internal/domain/entity"
	"tmdb-agent/internal/usecase/scheduler"
)

const maxRequestBodyBytes = 1 << 20

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeNotFound       = "not_found"
	errorCodeConflict       = "conflict"
	errorCodeUnavailable    = "unavailable"
	errorCodeRuntime        = "runtime_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type runResponse struct {
	RunID       entity.RunID       `json:"run_id"`
	Status      entity.RunStatus   `json:"status"`
	Answer      string             `json:"answer,omitempty"`
	Usage       *entity.TotalUsage `json:"usage,omitempty"`
	Generations int                `json:"generations,omitempty"`
	Cycles      int                `json:"cycles,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// newRunResponse reports a handle. The outcome is only read once the run is terminal.
func newRunResponse(h input.RunHandle) runResponse {
	resp := runResponse{RunID: h.ID(), Status: h.Status()}

	select {
	case <-h.Done():
	default:
		return resp
	}

	outcome, err := h.Result(context.Background())
	resp.Status = h.Status()
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if outcome != nil {
		resp.Answer = outcome.Answer
		resp.Usage = &outcome.TotalUsage
		resp.Generations = outcome.Generations
		resp.Cycles = outcome.Cycles
	}
	return resp
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapRunError(err)
	writeError(w, status, code, err.Error())
}

func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, errorCodeInvalidRequest, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

func mapRunError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrRunNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, entity.ErrRunExists):
		return http.StatusConflict, errorCodeConflict
	case errors.Is(err, entity.ErrInvalidRunID):
		return http.StatusBadRequest, errorCodeInvalidRequest
	case errors.Is(err, scheduler.ErrClosed):
		return http.StatusServiceUnavailable, errorCodeUnavailable
	default:
		return http.StatusInternalServerError, errorCodeRuntime
	}
}
