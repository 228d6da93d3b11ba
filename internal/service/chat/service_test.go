package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hamyarchat/backend/internal/model/faq"
	"github.com/hamyarchat/backend/internal/service/ai"
	"github.com/hamyarchat/backend/internal/service/chat"

	model "github.com/hamyarchat/backend/internal/model/session"
	session "github.com/hamyarchat/backend/internal/service/session"
)

type stubResponder struct {
	reply ai.Reply
	calls int
	// lastHistory records what the gateway was handed.
	lastHistory []model.Message
}

func (s *stubResponder) Respond(_ context.Context, _ string, history []model.Message) ai.Reply {
	s.calls++
	s.lastHistory = history
	return s.reply
}

type stubRelay struct {
	calls int
	err   error
	last  string
}

func (s *stubRelay) RelayUserMessage(_ context.Context, _ model.Session, text string) error {
	s.calls++
	s.last = text
	return s.err
}

func TestRouteUnboundSessionGoesToAI(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "پاسخ هوش مصنوعی"}}
	relay := &stubRelay{}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), responder, relay)

	result, err := svc.Route(context.Background(), "abc123def456ghi789", "سلام")
	if err != nil {
		t.Fatalf("Route err: %v", err)
	}
	if result.OperatorConnected {
		t.Fatal("unbound session must not route to the operator bridge")
	}
	if relay.calls != 0 {
		t.Fatal("relay must never be called for an unbound session")
	}
	if responder.calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", responder.calls)
	}
	if result.Reply.Text != "پاسخ هوش مصنوعی" {
		t.Fatalf("unexpected reply: %s", result.Reply.Text)
	}
}

func TestRouteBoundSessionGoesToOperator(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "نباید دیده شود"}}
	relay := &stubRelay{}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), responder, relay)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	if _, err := store.BindOperator(ctx, created.ID, 42); err != nil {
		t.Fatalf("BindOperator err: %v", err)
	}

	result, err := svc.Route(ctx, created.ID, "سفارش من کجاست؟")
	if err != nil {
		t.Fatalf("Route err: %v", err)
	}
	if !result.OperatorConnected {
		t.Fatal("bound session must report operator routing")
	}
	if relay.calls != 1 || relay.last != "سفارش من کجاست؟" {
		t.Fatalf("expected 1 relay call with the message, got %d (%q)", relay.calls, relay.last)
	}
	if responder.calls != 0 {
		t.Fatal("gateway must never be called for a bound session")
	}
}

func TestRouteAfterClearReturnsToAI(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "دوباره هوش مصنوعی"}}
	relay := &stubRelay{}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), responder, relay)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	store.BindOperator(ctx, created.ID, 42)
	store.ClearOperator(ctx, created.ID)

	result, err := svc.Route(ctx, created.ID, "سلام")
	if err != nil {
		t.Fatalf("Route err: %v", err)
	}
	if result.OperatorConnected || relay.calls != 0 {
		t.Fatal("cleared session must route back to AI")
	}
	if responder.calls != 1 {
		t.Fatalf("expected gateway call after clearing, got %d", responder.calls)
	}
}

func TestRouteRelayFailureSurfacesError(t *testing.T) {
	store := session.NewStore()
	relay := &stubRelay{err: errors.New("telegram down")}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), &stubResponder{}, relay)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	store.BindOperator(ctx, created.ID, 42)

	result, err := svc.Route(ctx, created.ID, "سلام")
	if err == nil {
		t.Fatal("expected relay failure to surface")
	}
	if !result.OperatorConnected {
		t.Fatal("failed relay is still an operator-routed message")
	}
}

func TestRouteFAQBypassesGateway(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "نباید دیده شود"}}
	svc := chat.NewService(store, faq.NewMemoryStore(faq.Seed()), responder, &stubRelay{})

	result, err := svc.Route(context.Background(), "abc123def456ghi789", "ساعت کاری پشتیبانی شما چیست؟")
	if err != nil {
		t.Fatalf("Route err: %v", err)
	}
	if !result.FromFAQ {
		t.Fatal("expected a FAQ answer")
	}
	if responder.calls != 0 {
		t.Fatal("FAQ hit must not reach the gateway")
	}
}

func TestRouteWithoutGatewayFailsOpen(t *testing.T) {
	store := session.NewStore()
	svc := chat.NewService(store, faq.NewMemoryStore(nil), nil, &stubRelay{})

	result, err := svc.Route(context.Background(), "abc123def456ghi789", "سلام")
	if err != nil {
		t.Fatalf("Route err: %v", err)
	}
	if !result.Reply.ShouldHandoff || result.Reply.Text != ai.FallbackText {
		t.Fatalf("missing gateway must fail open, got %+v", result.Reply)
	}
}

func TestRouteSavesBothTurns(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "پاسخ"}}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), responder, &stubRelay{})
	ctx := context.Background()

	if _, err := svc.Route(ctx, "abc123def456ghi789", "سلام"); err != nil {
		t.Fatalf("Route err: %v", err)
	}

	history, err := store.History(ctx, "abc123def456ghi789")
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(history))
	}
	if history[0].Sender != model.SenderUser || history[1].Sender != model.SenderAssistant {
		t.Fatalf("unexpected turn order: %+v", history)
	}
}

func TestRouteHistoryExcludesCurrentQuery(t *testing.T) {
	store := session.NewStore()
	responder := &stubResponder{reply: ai.Reply{Text: "پاسخ"}}
	svc := chat.NewService(store, faq.NewMemoryStore(nil), responder, &stubRelay{})
	ctx := context.Background()

	svc.Route(ctx, "abc123def456ghi789", "اول")
	svc.Route(ctx, "abc123def456ghi789", "دوم")

	for _, msg := range responder.lastHistory {
		if msg.Content == "دوم" {
			t.Fatal("current query must not be duplicated into history")
		}
	}
	if len(responder.lastHistory) != 2 {
		t.Fatalf("expected prior two turns as history, got %d", len(responder.lastHistory))
	}
}
