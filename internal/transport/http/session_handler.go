package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"exam-arena-service/internal/app"
	"exam-arena-service/internal/auth"
	"exam-arena-service/internal/domain"
)

type SessionHandler struct {
	service *app.QuizService
}

type createSessionRequest struct {
	Mode       string   `json:"mode"`
	Exam       []string `json:"exam"`
	Subject    []string `json:"subject"`
	Difficulty string   `json:"difficulty"`
	Limit      int      `json:"limit"`
	Language   string   `json:"language"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid session payload")
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	filter := domain.QuestionFilter{ExamTypes: req.Exam, Subjects: req.Subject}
	if req.Difficulty != "" {
		d, ok := domain.ParseDifficulty(req.Difficulty)
		if !ok {
			badRequest(w, "unknown difficulty")
			return
		}
		filter.Difficulty = d
	}

	res, err := h.service.Start(r.Context(), app.StartRequest{
		UserID:   auth.UserID(r.Context()),
		Mode:     mode,
		Filter:   filter,
		Limit:    req.Limit,
		Language: req.Language,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(FallbackLevelHeader, res.FallbackLevel.String())
	writeJSON(w, http.StatusCreated, res)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
