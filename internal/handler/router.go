package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/hamyarchat/backend/internal/handler/chat"
	realtimeHandler "github.com/hamyarchat/backend/internal/handler/realtime"
	webhookHandler "github.com/hamyarchat/backend/internal/handler/webhook"
	middlewarePkg "github.com/hamyarchat/backend/internal/middleware"
	"github.com/hamyarchat/backend/internal/model/faq"
	"github.com/hamyarchat/backend/internal/realtime"
	chatService "github.com/hamyarchat/backend/internal/service/chat"
	"github.com/hamyarchat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. The operator bridge is
// optional at the type level so tests can run without a Telegram backend,
// but production always passes one.
func NewRouter(chatSvc *chatService.Service, faqs faq.Store, hub *realtime.Hub, notifier chatHandler.Notifier, updates webhookHandler.UpdateHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	store := chatSvc.Store()

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(chatSvc, store, notifier).RegisterRoutes(api)

		api.Get("/faqs", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{"faqs": faqs.List()})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": store.Counts(r.Context()),
		})
	})

	realtimeHandler.New(hub, chatSvc).RegisterRoutes(r)

	if updates != nil {
		webhookHandler.New(updates).RegisterRoutes(r)
	}

	return r
}
