package operator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hamyarchat/backend/internal/realtime"

	model "github.com/hamyarchat/backend/internal/model/session"
	session "github.com/hamyarchat/backend/internal/service/session"
)

// fakeBotAPI records Bot API calls and answers them like Telegram would.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []botCall

	nextMessageID int64
}

type botCall struct {
	method string
	body   map[string]any
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		method := parts[len(parts)-1]

		body := map[string]any{}
		if raw, err := io.ReadAll(r.Body); err == nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		f.mu.Lock()
		f.calls = append(f.calls, botCall{method: method, body: body})
		f.nextMessageID++
		messageID := f.nextMessageID
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "sendMessage":
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"message_id": messageID},
			})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
		}
	})
}

func (f *fakeBotAPI) callsFor(method string) []botCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []botCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestBridge(t *testing.T) (*Bridge, *fakeBotAPI, *session.Store, *realtime.Hub) {
	t.Helper()

	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	store := session.NewStore()
	hub := realtime.NewHub()
	bridge := NewBridge(Config{
		Token:       "test-token",
		AdminChatID: 1000,
		APIBaseURL:  srv.URL,
	}, store, hub)
	return bridge, fake, store, hub
}

func TestNotifyNewRequestPostsActions(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	sess, _ := store.MarkPending(ctx, "abc123def456ghi789", model.UserInfo{Name: "Ali", Page: "/pricing"})
	if err := bridge.NotifyNewRequest(ctx, sess); err != nil {
		t.Fatalf("NotifyNewRequest err: %v", err)
	}

	sends := fake.callsFor("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("expected 1 sendMessage, got %d", len(sends))
	}

	text, _ := sends[0].body["text"].(string)
	if !strings.Contains(text, "abc123def456") {
		t.Fatalf("notification must carry the short id, got: %s", text)
	}
	if !strings.Contains(text, "Ali") {
		t.Fatalf("notification must carry the user name, got: %s", text)
	}

	raw, _ := json.Marshal(sends[0].body["reply_markup"])
	markup := string(raw)
	if !strings.Contains(markup, "accept_abc123def456") || !strings.Contains(markup, "reject_abc123def456") {
		t.Fatalf("keyboard must encode the short id in callback data, got: %s", markup)
	}
}

func TestNotifyNewRequestWithoutAdminChat(t *testing.T) {
	fake := &fakeBotAPI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := session.NewStore()
	bridge := NewBridge(Config{Token: "t", APIBaseURL: srv.URL}, store, realtime.NewHub())

	sess, _ := store.Create(context.Background(), "abc123def456ghi789")
	if err := bridge.NotifyNewRequest(context.Background(), sess); err != ErrNoAdminChat {
		t.Fatalf("expected ErrNoAdminChat, got %v", err)
	}
}

func acceptCallback(shortID string) Update {
	return Update{
		UpdateID: 1,
		CallbackQuery: &CallbackQuery{
			ID:      "cb-1",
			From:    &User{ID: 7, FirstName: "Sara"},
			Message: &Message{MessageID: 55, Chat: &Chat{ID: 1000}},
			Data:    "accept_" + shortID,
		},
	}
}

func TestAcceptBindsOperator(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.MarkPending(ctx, "abc123def456ghi789", model.UserInfo{Name: "Ali"})
	bridge.HandleUpdate(ctx, acceptCallback(created.ShortID))

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.Mode != model.ModeHuman {
		t.Fatalf("expected human mode after accept, got %s", got.Mode)
	}
	if got.OperatorChatID != 1000 {
		t.Fatalf("expected operator chat binding, got %d", got.OperatorChatID)
	}

	if len(fake.callsFor("editMessageText")) != 1 {
		t.Fatal("expected the original notification to be edited")
	}
	if len(fake.callsFor("answerCallbackQuery")) != 1 {
		t.Fatal("expected the callback to be acknowledged")
	}
}

func TestAcceptUnknownShortID(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	bridge.HandleUpdate(ctx, acceptCallback("000000000000"))

	answers := fake.callsFor("answerCallbackQuery")
	if len(answers) != 1 {
		t.Fatalf("expected 1 answerCallbackQuery, got %d", len(answers))
	}
	text, _ := answers[0].body["text"].(string)
	if !strings.Contains(text, "یافت نشد") {
		t.Fatalf("expected not-found notice to the operator, got: %s", text)
	}
	if counts := store.Counts(ctx); counts[model.ModeHuman] != 0 {
		t.Fatal("no session must be bound for an unknown short id")
	}
}

func TestAcceptWhileOperatorBusy(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	first, _ := store.MarkPending(ctx, "firstsession-aaaa", model.UserInfo{})
	second, _ := store.MarkPending(ctx, "secondsession-bbb", model.UserInfo{})

	bridge.HandleUpdate(ctx, acceptCallback(first.ShortID))
	bridge.HandleUpdate(ctx, acceptCallback(second.ShortID))

	got, _ := store.Get(ctx, second.ID)
	if got.Mode == model.ModeHuman {
		t.Fatal("a busy operator must not bind a second session")
	}
	if bound, err := store.FindByOperator(ctx, 1000); err != nil || bound.ID != first.ID {
		t.Fatalf("operator must stay bound to the first session, got %v / %v", bound.ID, err)
	}

	answers := fake.callsFor("answerCallbackQuery")
	if len(answers) != 2 {
		t.Fatalf("expected 2 answerCallbackQuery, got %d", len(answers))
	}
	text, _ := answers[1].body["text"].(string)
	if !strings.Contains(text, "ممکن نیست") {
		t.Fatalf("expected a refusal notice to the operator, got: %s", text)
	}
}

func TestRejectReturnsSessionToAI(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.MarkPending(ctx, "abc123def456ghi789", model.UserInfo{})
	bridge.HandleUpdate(ctx, Update{
		UpdateID: 2,
		CallbackQuery: &CallbackQuery{
			ID:      "cb-2",
			From:    &User{ID: 7},
			Message: &Message{MessageID: 56, Chat: &Chat{ID: 1000}},
			Data:    "reject_" + created.ShortID,
		},
	})

	got, _ := store.Get(ctx, created.ID)
	if got.Mode != model.ModeAI {
		t.Fatalf("expected rejected session back in ai mode, got %s", got.Mode)
	}
	if len(fake.callsFor("editMessageText")) != 1 {
		t.Fatal("expected the original notification to be edited")
	}
}

func TestOperatorMessageRelayedToSession(t *testing.T) {
	bridge, _, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	if _, err := store.BindOperator(ctx, created.ID, 1000); err != nil {
		t.Fatalf("BindOperator err: %v", err)
	}

	bridge.HandleUpdate(ctx, Update{
		UpdateID: 3,
		Message: &Message{
			MessageID: 60,
			Chat:      &Chat{ID: 1000},
			From:      &User{ID: 7},
			Text:      "سلام، چطور می‌توانم کمک کنم؟",
		},
	})

	history, err := store.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("History err: %v", err)
	}
	if len(history) != 1 || history[0].Sender != model.SenderOperator {
		t.Fatalf("expected one operator turn in history, got %+v", history)
	}
}

func TestOperatorMessageWithoutBoundSession(t *testing.T) {
	bridge, fake, _, _ := newTestBridge(t)

	bridge.HandleUpdate(context.Background(), Update{
		UpdateID: 4,
		Message: &Message{
			MessageID: 61,
			Chat:      &Chat{ID: 2222},
			From:      &User{ID: 8},
			Text:      "کسی هست؟",
		},
	})

	sends := fake.callsFor("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("expected 1 error notice, got %d sends", len(sends))
	}
	text, _ := sends[0].body["text"].(string)
	if !strings.Contains(text, "گفتگوی فعالی") {
		t.Fatalf("expected no-active-session notice, got: %s", text)
	}
}

func TestEndCommandRemovesSession(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	if _, err := store.BindOperator(ctx, created.ID, 1000); err != nil {
		t.Fatalf("BindOperator err: %v", err)
	}

	bridge.HandleUpdate(ctx, Update{
		UpdateID: 5,
		Message: &Message{
			MessageID: 62,
			Chat:      &Chat{ID: 1000},
			From:      &User{ID: 7},
			Text:      "/end",
		},
	})

	if _, err := store.Get(ctx, created.ID); err != session.ErrSessionNotFound {
		t.Fatalf("expected session removed after /end, got %v", err)
	}
	if len(fake.callsFor("sendMessage")) != 1 {
		t.Fatal("expected an end confirmation to the operator")
	}
}

func TestRelayUserMessage(t *testing.T) {
	bridge, fake, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	bound, _ := store.BindOperator(ctx, created.ID, 1000)

	if err := bridge.RelayUserMessage(ctx, bound, "سفارش من کجاست؟"); err != nil {
		t.Fatalf("RelayUserMessage err: %v", err)
	}

	sends := fake.callsFor("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("expected 1 relay send, got %d", len(sends))
	}
	text, _ := sends[0].body["text"].(string)
	if !strings.Contains(text, "abc123def456") || !strings.Contains(text, "سفارش من کجاست؟") {
		t.Fatalf("relay must carry short id and text, got: %s", text)
	}
}

func TestRelayUserMessageUnboundSession(t *testing.T) {
	bridge, _, store, _ := newTestBridge(t)
	ctx := context.Background()

	created, _ := store.Create(ctx, "abc123def456ghi789")
	if err := bridge.RelayUserMessage(ctx, created, "سلام"); err == nil {
		t.Fatal("expected error relaying for an unbound session")
	}
}

// joinBrowser attaches a real websocket pair to the hub room so delivery can
// be observed from the browser side.
func joinBrowser(t *testing.T, hub *realtime.Hub, room string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConn := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case conn := <-serverConn:
		client := realtime.NewClient(conn)
		t.Cleanup(func() { client.Close() })
		hub.Join(room, client)
	case <-time.After(2 * time.Second):
		t.Fatal("server connection not established")
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return clientConn
}

func TestHandoffAcceptReachesBrowser(t *testing.T) {
	bridge, fake, store, hub := newTestBridge(t)
	ctx := context.Background()

	sess, _ := store.MarkPending(ctx, "abc123def456ghi789", model.UserInfo{Name: "Ali"})
	if err := bridge.NotifyNewRequest(ctx, sess); err != nil {
		t.Fatalf("NotifyNewRequest err: %v", err)
	}

	text, _ := fake.callsFor("sendMessage")[0].body["text"].(string)
	if !strings.Contains(text, sess.ShortID) || !strings.Contains(text, "Ali") {
		t.Fatalf("notification must carry short id and name, got: %s", text)
	}

	browser := joinBrowser(t, hub, sess.ID)

	bridge.HandleUpdate(ctx, acceptCallback(sess.ShortID))

	got, _ := store.Get(ctx, sess.ID)
	if got.Mode != model.ModeHuman {
		t.Fatalf("expected human mode after accept, got %s", got.Mode)
	}

	var env map[string]any
	if err := browser.ReadJSON(&env); err != nil {
		t.Fatalf("browser read failed: %v", err)
	}
	if env["type"] != realtime.EventOperatorConnected {
		t.Fatalf("expected operator-connected in room %s, got %v", sess.ID, env)
	}
}

func TestHandoffRejectNotifiesBrowser(t *testing.T) {
	bridge, _, store, hub := newTestBridge(t)
	ctx := context.Background()

	sess, _ := store.MarkPending(ctx, "abc123def456ghi789", model.UserInfo{})
	browser := joinBrowser(t, hub, sess.ID)

	bridge.HandleUpdate(ctx, Update{
		UpdateID: 6,
		CallbackQuery: &CallbackQuery{
			ID:      "cb-6",
			From:    &User{ID: 7},
			Message: &Message{MessageID: 70, Chat: &Chat{ID: 1000}},
			Data:    "reject_" + sess.ShortID,
		},
	})

	var env map[string]any
	if err := browser.ReadJSON(&env); err != nil {
		t.Fatalf("browser read failed: %v", err)
	}
	if env["type"] != realtime.EventOperatorRejected {
		t.Fatalf("expected operator-rejected event, got %v", env)
	}
}
