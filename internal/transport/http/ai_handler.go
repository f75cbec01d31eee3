package http

import (
	"net/http"
	"strings"

	"exam-arena-service/internal/assist"
	"exam-arena-service/internal/domain"
)

type AIHandler struct {
	assist *assist.Service
}

type chatRequest struct {
	Message  string           `json:"message"`
	History  []assist.Message `json:"history"`
	Language string           `json:"language"`
}

type textResponse struct {
	Text string `json:"text"`
}

func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: h.assist.Chat(r.Context(), req.Message, req.History, req.Language)})
}

type studyRequest struct {
	Action          string `json:"action"`
	Topic           string `json:"topic"`
	UserAnswer      string `json:"userAnswer"`
	CurrentQuestion string `json:"currentQuestion"`
	Language        string `json:"language"`
}

type feedbackResponse struct {
	Feedback string `json:"feedback"`
}

func (h *AIHandler) Study(w http.ResponseWriter, r *http.Request) {
	var req studyRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid study payload")
		return
	}
	switch req.Action {
	case "ask":
		writeJSON(w, http.StatusOK, h.assist.StudyAsk(r.Context(), req.Topic, req.Language))
	case "verify":
		if req.CurrentQuestion == "" || req.UserAnswer == "" {
			badRequest(w, "currentQuestion and userAnswer are required")
			return
		}
		feedback := h.assist.StudyVerify(r.Context(), req.CurrentQuestion, req.UserAnswer, req.Language)
		writeJSON(w, http.StatusOK, feedbackResponse{Feedback: feedback})
	default:
		badRequest(w, `action must be "ask" or "verify"`)
	}
}

// questionRequest carries a client-side question for one-off hints and explanations.
type questionRequest struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Selected      string   `json:"selected"`
	Language      string   `json:"language"`
}

// toQuestion maps free-form options onto option ids A..D. Answers given as option text are
// translated to their id.
func (req questionRequest) toQuestion() (domain.Question, string, bool) {
	if strings.TrimSpace(req.Question) == "" || len(req.Options) == 0 || len(req.Options) > len(domain.OptionIDs) {
		return domain.Question{}, "", false
	}
	q := domain.Question{Prompt: domain.LocalizedText{req.Language: req.Question, domain.DefaultLanguage: req.Question}}
	idFor := func(answer string) string {
		for i, opt := range req.Options {
			if answer == opt || answer == domain.OptionIDs[i] {
				return domain.OptionIDs[i]
			}
		}
		return ""
	}
	for i, opt := range req.Options {
		q.Options = append(q.Options, domain.Option{ID: domain.OptionIDs[i], Text: domain.LocalizedText{domain.DefaultLanguage: opt}})
	}
	q.CorrectOptionID = idFor(req.CorrectAnswer)
	return q, idFor(req.Selected), true
}

func (h *AIHandler) Hint(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid hint payload")
		return
	}
	q, _, ok := req.toQuestion()
	if !ok {
		badRequest(w, "question and up to four options are required")
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: h.assist.Hint(r.Context(), q, req.Language)})
}

func (h *AIHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid explain payload")
		return
	}
	q, selected, ok := req.toQuestion()
	if !ok {
		badRequest(w, "question and up to four options are required")
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: h.assist.Explain(r.Context(), q, selected, req.Language)})
}
