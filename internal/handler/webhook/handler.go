package webhook

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hamyarchat/backend/internal/service/operator"
)

// UpdateHandler consumes inbound Bot API updates. Satisfied by
// *operator.Bridge.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd operator.Update)
}

// Handler receives Telegram webhook deliveries.
type Handler struct {
	bridge UpdateHandler
}

// New creates the webhook handler.
func New(bridge UpdateHandler) *Handler {
	return &Handler{bridge: bridge}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/telegram", h.handleTelegram)
}

// handleTelegram decodes one update and dispatches it. Telegram retries on
// non-2xx responses, so per-update processing errors are swallowed after
// logging; only a malformed body is rejected.
func (h *Handler) handleTelegram(w http.ResponseWriter, r *http.Request) {
	var upd operator.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.Printf("[webhook] malformed telegram update: %v", err)
		respondError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	h.bridge.HandleUpdate(r.Context(), upd)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
