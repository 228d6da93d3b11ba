package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/hamyarchat/backend/internal/model/faq"
	"github.com/hamyarchat/backend/internal/service/ai"

	model "github.com/hamyarchat/backend/internal/model/session"
	session "github.com/hamyarchat/backend/internal/service/session"
)

// Responder generates an AI reply for a user message. Satisfied by
// *ai.Gateway; stubbed in tests.
type Responder interface {
	Respond(ctx context.Context, message string, history []model.Message) ai.Reply
}

// Relay forwards a user message to the operator bound to the session.
// Satisfied by *operator.Bridge.
type Relay interface {
	RelayUserMessage(ctx context.Context, sess model.Session, text string) error
}

// Result describes where a message went and what came back.
type Result struct {
	// OperatorConnected is set when the message was relayed to a human
	// instead of being answered here.
	OperatorConnected bool
	Reply             ai.Reply
	FromFAQ           bool
}

// Service routes each inbound user message based on the session's mode:
// operator-bound sessions relay to Telegram, everything else is answered by
// the FAQ store or the AI gateway. Both the HTTP and the websocket surface
// call into this one path, so routing decisions live in exactly one place.
type Service struct {
	store   *session.Store
	faqs    faq.Store
	gateway Responder
	bridge  Relay
}

// NewService wires the routing dependencies. gateway may be nil when AI is
// not configured; bridge may be nil in tests.
func NewService(store *session.Store, faqs faq.Store, gateway Responder, bridge Relay) *Service {
	return &Service{store: store, faqs: faqs, gateway: gateway, bridge: bridge}
}

// Store exposes the underlying session store for handlers.
func (s *Service) Store() *session.Store {
	return s.store
}

// Route handles one user message for the session, creating the session on
// first contact.
func (s *Service) Route(ctx context.Context, sessionID, text string) (Result, error) {
	sess, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.SaveMessage(ctx, model.Message{
		SessionID: sess.ID,
		Sender:    model.SenderUser,
		Content:   text,
	}); err != nil {
		log.Printf("[chat] save user message failed session=%s: %v", sess.ShortID, err)
	}

	if sess.Bound() {
		if s.bridge == nil {
			return Result{}, fmt.Errorf("operator bridge unavailable")
		}
		if err := s.bridge.RelayUserMessage(ctx, sess, text); err != nil {
			return Result{OperatorConnected: true}, err
		}
		return Result{OperatorConnected: true}, nil
	}

	reply, fromFAQ := s.answer(ctx, text, sess.ID)

	if err := s.store.SaveMessage(ctx, model.Message{
		SessionID: sess.ID,
		Sender:    model.SenderAssistant,
		Content:   reply.Text,
	}); err != nil {
		log.Printf("[chat] save assistant message failed session=%s: %v", sess.ShortID, err)
	}

	return Result{Reply: reply, FromFAQ: fromFAQ}, nil
}

// answer resolves a non-relayed message: canned FAQ entries short-circuit the
// LLM, and a missing gateway fails open to the human path like any other
// completion failure.
func (s *Service) answer(ctx context.Context, text, sessionID string) (ai.Reply, bool) {
	if s.faqs != nil {
		if entry, ok := s.faqs.Match(text); ok {
			log.Printf("[chat] faq answer session=%s entry=%s", model.ShortID(sessionID), entry.ID)
			return ai.Reply{Text: entry.Answer}, true
		}
	}

	if s.gateway == nil {
		return ai.Reply{Text: ai.FallbackText, ShouldHandoff: true}, false
	}

	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		history = nil
	}
	// Drop the user turn saved just above; the gateway receives it as the
	// query, not as history.
	if n := len(history); n > 0 && history[n-1].Sender == model.SenderUser {
		history = history[:n-1]
	}

	return s.gateway.Respond(ctx, text, history), false
}
