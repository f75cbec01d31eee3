package http

import (
	"net/http"

	"exam-arena-service/internal/auth"
	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/ledger"
)

type GamificationHandler struct {
	ledger *ledger.Service
}

type userResponse struct {
	User domain.User `json:"user"`
}

type spinResponse struct {
	Reward int64       `json:"reward"`
	User   domain.User `json:"user"`
}

func (h *GamificationHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.ledger.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *GamificationHandler) QuizResult(w http.ResponseWriter, r *http.Request) {
	var res domain.QuizResult
	if err := decodeBody(w, r, &res); err != nil {
		badRequest(w, "invalid quiz result")
		return
	}
	if res.Mode == "" {
		res.Mode = domain.ModeStandard
	}
	out, err := h.ledger.RecordQuizResult(r.Context(), auth.UserID(r.Context()), res)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *GamificationHandler) UsePowerUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, "invalid power-up payload")
		return
	}
	p, err := domain.ParsePowerUp(req.Type)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	h.respondUser(w, r, func(userID string) (domain.User, error) {
		return h.ledger.UsePowerUp(r.Context(), userID, p)
	})
}

func (h *GamificationHandler) BuyIsland(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IslandID string `json:"islandId"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.IslandID == "" {
		badRequest(w, "islandId is required")
		return
	}
	h.respondUser(w, r, func(userID string) (domain.User, error) {
		return h.ledger.BuyIsland(r.Context(), userID, req.IslandID)
	})
}

func (h *GamificationHandler) BuyShield(w http.ResponseWriter, r *http.Request) {
	h.respondUser(w, r, func(userID string) (domain.User, error) {
		return h.ledger.BuyShield(r.Context(), userID)
	})
}

func (h *GamificationHandler) Spin(w http.ResponseWriter, r *http.Request) {
	reward, user, err := h.ledger.Spin(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spinResponse{Reward: reward, User: user})
}

func (h *GamificationHandler) respondUser(w http.ResponseWriter, r *http.Request, fn func(userID string) (domain.User, error)) {
	user, err := fn(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}
