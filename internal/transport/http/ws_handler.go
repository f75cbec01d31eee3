package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"exam-arena-service/internal/app"
	"exam-arena-service/internal/auth"
	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/engine"
)

// Outbound message types.
const (
	msgSnapshot = "snapshot"
	msgOutcome  = "outcome"
	msgNotice   = "notice"
	msgError    = "error"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionID string `json:"optionId"`
}

type powerUpPayload struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type noticePayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the session use cases.
// Every accepted action is followed by a fresh snapshot; timer-driven changes arrive through
// the session subscription.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	userID := auth.UserID(r.Context())
	if _, err := h.service.Session(r.Context(), userID, sessionID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.service.Subscribe(ctx, userID, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[noticePayload]{Type: msgError, Payload: noticePayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: msgSnapshot, Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.handle(ctx, userID, sessionID, inbound) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, userID, sessionID string, in inboundMessage) []outboundMessage[any] {
	var (
		snap engine.Snapshot
		err  error
	)
	switch in.Type {
	case "answer":
		var p answerPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil || p.OptionID == "" {
			return reply(msgError, noticePayload{Message: "invalid answer payload"})
		}
		snap, err = h.service.Answer(ctx, userID, sessionID, p.OptionID)
	case "undo":
		var ok bool
		snap, ok, err = h.service.Undo(ctx, userID, sessionID)
		if err == nil && !ok {
			return reply(msgNotice, noticePayload{Message: "nothing to undo", Code: "undo_unavailable"})
		}
	case "powerup":
		var p powerUpPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return reply(msgError, noticePayload{Message: "invalid powerup payload"})
		}
		effect, perr := domain.ParsePowerUp(p.Type)
		if perr != nil {
			return reply(msgError, noticePayload{Message: perr.Error()})
		}
		snap, err = h.service.Activate(ctx, userID, sessionID, effect)
	case "next":
		snap, err = h.service.Next(ctx, userID, sessionID)
	case "explain":
		if _, err = h.service.Explain(ctx, userID, sessionID); err == nil {
			snap, err = h.service.Snapshot(ctx, userID, sessionID)
		}
	case "revive":
		snap, err = h.service.Revive(ctx, userID, sessionID)
	case "decline":
		snap, err = h.service.DeclineRevive(ctx, userID, sessionID)
	case "report":
		out, rerr := h.service.Report(ctx, userID, sessionID)
		if rerr != nil {
			return failure(rerr)
		}
		return reply(msgOutcome, out)
	default:
		return reply(msgError, noticePayload{Message: "unsupported message type"})
	}
	if err != nil {
		return failure(err)
	}
	return reply(msgSnapshot, snap)
}

func reply(kind string, payload any) []outboundMessage[any] {
	return []outboundMessage[any]{{Type: kind, Payload: payload}}
}

// failure turns ledger rejections into notices; the session kept its last good state.
func failure(err error) []outboundMessage[any] {
	_, code := classify(err)
	var le *domain.LedgerError
	if errors.As(err, &le) || errors.Is(err, domain.ErrInsufficientXP) {
		return reply(msgNotice, noticePayload{Message: err.Error(), Code: code})
	}
	return reply(msgError, noticePayload{Message: err.Error(), Code: code})
}
