// Package api exposes the advisor to the chat widget over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/orchestrator"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Advisor is the orchestrator surface the handlers call.
type Advisor interface {
	Start(ctx context.Context, userID string) (*orchestrator.StartResult, error)
	Clear(ctx context.Context, userID string) (*orchestrator.StartResult, error)
	Send(ctx context.Context, userID, sessionID, message string) (*orchestrator.TurnResult, error)
	History(ctx context.Context, userID, sessionID string) ([]model.Event, error)
}

// Handler serves the chat endpoints.
type Handler struct {
	advisor Advisor
}

func NewHandler(a Advisor) *Handler {
	return &Handler{advisor: a}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting,omitempty"`
	Resumed   bool   `json:"resumed"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Response   string `json:"response"`
	SessionID  string `json:"session_id"`
	Terminated bool   `json:"terminated,omitempty"`
}

type historyMessage struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	Messages []historyMessage `json:"messages"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("encode response")
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// fail logs err and answers with its status and the advisor-persona sentence.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var ae *errx.AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		status = ae.Status
	}
	if errors.Is(err, context.Canceled) {
		// the client is gone; nothing useful can be written
		logx.Debug().Str("path", r.URL.Path).Msg("request cancelled")
		return
	}
	logx.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	Error(w, status, errx.UserMessage(err))
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/start/{user_id}", h.start)
	r.Post("/message/{user_id}/{session_id}", h.message)
	r.Get("/history/{user_id}/{session_id}", h.history)
	r.Post("/clear/{user_id}", h.clear)
}

func pathParam(r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	return v, v != ""
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathParam(r, "user_id")
	if !ok {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	res, err := h.advisor.Start(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sessionResponse{SessionID: res.SessionID, Greeting: res.Greeting, Resumed: res.Resumed})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathParam(r, "user_id")
	if !ok {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	res, err := h.advisor.Clear(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sessionResponse{SessionID: res.SessionID, Greeting: res.Greeting})
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathParam(r, "user_id")
	if !ok {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	sessionID, ok := pathParam(r, "session_id")
	if !ok {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	var req messageRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := h.advisor.Send(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, messageResponse{Response: res.Reply, SessionID: res.SessionID, Terminated: res.Terminated})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathParam(r, "user_id")
	if !ok {
		Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	sessionID, ok := pathParam(r, "session_id")
	if !ok {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	events, err := h.advisor.History(r.Context(), userID, sessionID)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := historyResponse{Messages: make([]historyMessage, 0, len(events))}
	for _, e := range events {
		out.Messages = append(out.Messages, historyMessage{Author: e.Author, Text: e.Text, Timestamp: e.Timestamp})
	}
	JSON(w, http.StatusOK, out)
}
