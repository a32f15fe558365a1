package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-ledger-service/internal/domain"
)

// errorPayload is the body of every error response: {"error": ..., "code": ...}.
type errorPayload struct {
	Message string `json:"error"`
	Code    string `json:"code"`
}

// classify maps domain errors onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIncompleteSubmission):
		return http.StatusUnprocessableEntity, "incomplete_submission"
	case errors.Is(err, domain.ErrAttemptLimitExceeded):
		return http.StatusConflict, "attempt_limit_exceeded"
	case errors.Is(err, domain.ErrConcurrentSubmission):
		return http.StatusConflict, "concurrent_submission"
	case errors.Is(err, domain.ErrAttemptInProgress):
		return http.StatusConflict, "attempt_in_progress"
	case errors.Is(err, domain.ErrAttemptNotStarted):
		return http.StatusNotFound, "attempt_not_started"
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "quiz_not_found"
	case errors.Is(err, domain.ErrQuizNotPublished):
		return http.StatusForbidden, "quiz_not_published"
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity, "invalid_quiz"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func toErrorPayload(err error) errorPayload {
	_, code := classify(err)
	return errorPayload{Code: code, Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	writeJSON(w, status, toErrorPayload(err))
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: msg})
}
