package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/engine"
)

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: request failed: %v", err)
	}
	writeJSON(w, status, errorPayload{Message: err.Error(), Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorPayload{Message: msg, Code: "bad_request"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}

// classify maps the error taxonomy onto HTTP statuses and stable codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrContentUnavailable):
		return http.StatusNotFound, "content_unavailable"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrInsufficientXP):
		return http.StatusPaymentRequired, "insufficient_xp"
	case errors.Is(err, domain.ErrSpinCooldown):
		return http.StatusTooManyRequests, "spin_cooldown"
	case errors.Is(err, domain.ErrUnknownIsland),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusBadRequest, "invalid_request"
	case isRefusal(err):
		return http.StatusConflict, "refused"
	}
	var le *domain.LedgerError
	if errors.As(err, &le) {
		return http.StatusServiceUnavailable, "ledger_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

var refusals = []error{
	engine.ErrNoQuestions,
	engine.ErrAlreadyStarted,
	engine.ErrNotAnswering,
	engine.ErrAnswerSelected,
	engine.ErrNotAnswered,
	engine.ErrEffectActive,
	engine.ErrModeRestricted,
	engine.ErrEffectUnavailable,
	engine.ErrReviveNotOffered,
	engine.ErrRevivePending,
	engine.ErrSessionCompleted,
	engine.ErrNotCompleted,
}

func isRefusal(err error) bool {
	for _, r := range refusals {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
