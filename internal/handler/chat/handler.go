package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/hamyarchat/backend/internal/model/session"
	chatservice "github.com/hamyarchat/backend/internal/service/chat"
	sessionservice "github.com/hamyarchat/backend/internal/service/session"
)

// Notifier posts a handoff request to the operator channel. Satisfied by
// *operator.Bridge.
type Notifier interface {
	NotifyNewRequest(ctx context.Context, sess model.Session) error
}

// Handler exposes the chat and handoff HTTP endpoints.
type Handler struct {
	chatSvc  *chatservice.Service
	store    *sessionservice.Store
	notifier Notifier
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service, store *sessionservice.Store, notifier Notifier) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		store:    store,
		notifier: notifier,
	}
}

// RegisterRoutes mounts the chat endpoints under the API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/connect-human", h.handleConnectHuman)
	r.Get("/session/{sessionID}", h.handleGetSession)
}

// handleChat routes one user message: operator-bound sessions relay to the
// human, everything else is answered by the FAQ store or the AI gateway.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if payload.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	result, err := h.chatSvc.Route(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		if result.OperatorConnected {
			respondError(w, http.StatusBadGateway, "failed to reach the operator")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	if result.OperatorConnected {
		respondJSON(w, http.StatusOK, map[string]any{"operatorConnected": true})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       result.Reply.Text,
		"requiresHuman": result.Reply.ShouldHandoff,
	})
}

// handleConnectHuman marks the session pending and notifies the operators.
func (h *Handler) handleConnectHuman(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string         `json:"sessionId"`
		UserInfo  model.UserInfo `json:"userInfo"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, err := h.store.MarkPending(r.Context(), payload.SessionID, payload.UserInfo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	if h.notifier == nil {
		respondError(w, http.StatusServiceUnavailable, "operator channel unavailable")
		return
	}
	if err := h.notifier.NotifyNewRequest(r.Context(), sess); err != nil {
		respondError(w, http.StatusBadGateway, "failed to notify operators")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "pending": true})
}

// handleGetSession returns the session's mode and lifecycle fields.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
