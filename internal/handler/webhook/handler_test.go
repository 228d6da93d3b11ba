package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hamyarchat/backend/internal/service/operator"
)

type stubBridge struct {
	updates []operator.Update
}

func (s *stubBridge) HandleUpdate(_ context.Context, upd operator.Update) {
	s.updates = append(s.updates, upd)
}

func setup() (*chi.Mux, *stubBridge) {
	bridge := &stubBridge{}
	r := chi.NewRouter()
	New(bridge).RegisterRoutes(r)
	return r, bridge
}

func TestTelegramUpdateDispatched(t *testing.T) {
	r, bridge := setup()

	body := []byte(`{
		"update_id": 99,
		"callback_query": {
			"id": "cb-1",
			"from": {"id": 7, "first_name": "Sara"},
			"message": {"message_id": 55, "chat": {"id": 1000}},
			"data": "accept_abc123def456"
		}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(bridge.updates) != 1 {
		t.Fatalf("expected 1 dispatched update, got %d", len(bridge.updates))
	}

	cb := bridge.updates[0].CallbackQuery
	if cb == nil || cb.Data != "accept_abc123def456" {
		t.Fatalf("callback data lost in dispatch: %+v", bridge.updates[0])
	}
}

func TestTelegramMalformedBody(t *testing.T) {
	r, bridge := setup()

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader([]byte("{not json")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if len(bridge.updates) != 0 {
		t.Fatal("malformed update must not be dispatched")
	}
}
