package http

import (
	"net/http"
	"strconv"
	"strings"

	"exam-arena-service/internal/app"
	"exam-arena-service/internal/domain"
)

// Headers describing how far a question query was broadened.
const (
	FallbackLevelHeader   = "X-Fallback-Level"
	FallbackMessageHeader = "X-Fallback-Message"
)

type QuestionHandler struct {
	bank app.QuestionBank
}

// List serves GET /quiz?exam=&subject=&difficulty=&limit=.
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := parseQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := h.bank.Sample(r.Context(), filter, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(FallbackLevelHeader, res.Level.String())
	if res.Message != "" {
		w.Header().Set(FallbackMessageHeader, res.Message)
	}
	writeJSON(w, http.StatusOK, res.Questions)
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseQuery(r *http.Request) (domain.QuestionFilter, int, error) {
	q := r.URL.Query()
	filter := domain.QuestionFilter{
		ExamTypes: splitCSV(q.Get("exam")),
		Subjects:  splitCSV(q.Get("subject")),
	}
	if raw := q.Get("difficulty"); raw != "" {
		d, ok := domain.ParseDifficulty(raw)
		if !ok {
			return filter, 0, queryError("unknown difficulty " + strconv.Quote(raw))
		}
		filter.Difficulty = d
	}
	limit := app.DefaultQuestionLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, 0, queryError("limit must be a positive integer")
		}
		limit = n
	}
	if limit > app.MaxQuestionLimit {
		limit = app.MaxQuestionLimit
	}
	return filter, limit, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
