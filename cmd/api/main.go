package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamyarchat/backend/internal/config"
	"github.com/hamyarchat/backend/internal/handler"
	"github.com/hamyarchat/backend/internal/model/faq"
	"github.com/hamyarchat/backend/internal/realtime"
	"github.com/hamyarchat/backend/internal/service/ai"
	"github.com/hamyarchat/backend/internal/service/chat"
	"github.com/hamyarchat/backend/internal/service/operator"
	"github.com/hamyarchat/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := session.NewStore()
	faqs := faq.NewMemoryStore(faq.Seed())
	hub := realtime.NewHub()

	// Initialize the AI gateway. Missing credentials disable AI answers;
	// chat then falls open to the canned reply and the operator handoff.
	var gateway *ai.Gateway
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without AI responses")
		} else {
			gateway, err = ai.NewGateway(ctx, chatModel, ai.Config{})
			if err != nil {
				log.Printf("warning: failed to build AI chain: %v", err)
			} else {
				log.Println("AI gateway initialized successfully")
			}
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI initialization")
	}

	bridge := operator.NewBridge(operator.Config{
		Token:       cfg.Telegram.BotToken,
		AdminChatID: cfg.Telegram.AdminChatID,
		APIBaseURL:  cfg.Telegram.APIBaseURL,
	}, store, hub)

	// A nil *Gateway must not end up inside a non-nil interface.
	var responder chat.Responder
	if gateway != nil {
		responder = gateway
	}
	chatService := chat.NewService(store, faqs, responder, bridge)

	// Webhook delivery when a public URL is configured, long polling
	// otherwise.
	if cfg.Telegram.PublicBaseURL != "" {
		if err := bridge.SetupWebhook(ctx, cfg.Telegram.PublicBaseURL); err != nil {
			log.Fatalf("failed to register telegram webhook: %v", err)
		}
		log.Printf("telegram webhook registered at %s/webhook/telegram", cfg.Telegram.PublicBaseURL)
	} else {
		go bridge.StartPolling(ctx)
		log.Println("telegram long polling started")
	}

	router := handler.NewRouter(chatService, faqs, hub, bridge, bridge)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Hamyar Chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
