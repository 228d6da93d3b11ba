package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/hamyarchat/backend/internal/realtime"

	model "github.com/hamyarchat/backend/internal/model/session"
	session "github.com/hamyarchat/backend/internal/service/session"
)

// Callback actions are encoded directly in the button payload as
// "<action>_<shortId>" and parsed back out by fixed prefix.
const (
	acceptPrefix = "accept_"
	rejectPrefix = "reject_"

	endCommand = "/end"
)

var ErrNoAdminChat = errors.New("admin chat id is not configured")

// Config wires the bridge to the Bot API and the administrator channel.
type Config struct {
	Token       string
	AdminChatID int64
	// APIBaseURL overrides the Bot API host, used in tests.
	APIBaseURL string
	// HTTPClient overrides the transport, used in tests.
	HTTPClient *http.Client
}

// Bridge connects sessions to human operators over Telegram: it posts handoff
// notifications with accept/reject buttons, binds operators on accept, and
// relays messages in both directions.
type Bridge struct {
	api         *telegramAPI
	store       *session.Store
	hub         *realtime.Hub
	adminChatID int64

	// notices remembers the notification message per pending shortId so the
	// original message can be edited once an operator decides.
	mu      sync.Mutex
	notices map[string]int64
}

// NewBridge builds the bridge. The token must already be validated by config
// loading; a missing admin chat only disables notifications.
func NewBridge(cfg Config, store *session.Store, hub *realtime.Hub) *Bridge {
	return &Bridge{
		api:         newTelegramAPI(cfg.HTTPClient, cfg.APIBaseURL, cfg.Token),
		store:       store,
		hub:         hub,
		adminChatID: cfg.AdminChatID,
		notices:     make(map[string]int64),
	}
}

// NotifyNewRequest posts a handoff request to the administrator channel with
// accept/reject actions keyed by the session's short id.
func (b *Bridge) NotifyNewRequest(ctx context.Context, sess model.Session) error {
	if b.adminChatID == 0 {
		return ErrNoAdminChat
	}

	var sb strings.Builder
	sb.WriteString("🔔 درخواست گفتگو با اپراتور\n")
	sb.WriteString(fmt.Sprintf("شناسه: %s\n", sess.ShortID))
	if sess.UserInfo.Name != "" {
		sb.WriteString(fmt.Sprintf("نام: %s\n", sess.UserInfo.Name))
	}
	if sess.UserInfo.Page != "" {
		sb.WriteString(fmt.Sprintf("صفحه: %s\n", sess.UserInfo.Page))
	}

	keyboard := &inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{{
			{Text: "✅ پذیرش", CallbackData: acceptPrefix + sess.ShortID},
			{Text: "❌ رد", CallbackData: rejectPrefix + sess.ShortID},
		}},
	}

	messageID, err := b.api.sendMessage(ctx, b.adminChatID, sb.String(), keyboard)
	if err != nil {
		return fmt.Errorf("failed to notify operators: %w", err)
	}

	b.mu.Lock()
	b.notices[sess.ShortID] = messageID
	b.mu.Unlock()

	log.Printf("[telegram] handoff request posted session=%s", sess.ShortID)
	return nil
}

// RelayUserMessage forwards a user message to the operator chat bound to the
// session.
func (b *Bridge) RelayUserMessage(ctx context.Context, sess model.Session, text string) error {
	if !sess.Bound() {
		return session.ErrSessionNotFound
	}
	_, err := b.api.sendMessage(ctx, sess.OperatorChatID, fmt.Sprintf("💬 %s: %s", sess.ShortID, text), nil)
	if err != nil {
		return fmt.Errorf("failed to relay to operator: %w", err)
	}
	return nil
}

// HandleUpdate dispatches one inbound Bot API update. Errors are handled and
// logged here; per-update failures never propagate to the transport.
func (b *Bridge) HandleUpdate(ctx context.Context, upd Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleOperatorMessage(ctx, upd.Message)
	}
}

func (b *Bridge) handleCallback(ctx context.Context, cb *CallbackQuery) {
	data := strings.TrimSpace(cb.Data)
	switch {
	case strings.HasPrefix(data, acceptPrefix):
		b.handleAccept(ctx, cb, strings.TrimPrefix(data, acceptPrefix))
	case strings.HasPrefix(data, rejectPrefix):
		b.handleReject(ctx, cb, strings.TrimPrefix(data, rejectPrefix))
	default:
		log.Printf("[telegram] unknown callback data: %q", data)
		b.answerCallback(ctx, cb.ID, "")
	}
}

func (b *Bridge) handleAccept(ctx context.Context, cb *CallbackQuery, shortID string) {
	sess, err := b.store.ResolveShort(ctx, shortID)
	if err != nil {
		b.answerCallback(ctx, cb.ID, "گفتگو یافت نشد یا منقضی شده است.")
		return
	}

	operatorChatID := callbackChatID(cb)
	if operatorChatID == 0 {
		b.answerCallback(ctx, cb.ID, "")
		return
	}

	bound, err := b.store.BindOperator(ctx, sess.ID, operatorChatID)
	if err != nil {
		log.Printf("[telegram] accept failed session=%s: %v", shortID, err)
		b.answerCallback(ctx, cb.ID, "اتصال به این گفتگو ممکن نیست.")
		return
	}

	b.editNotice(ctx, cb, shortID, fmt.Sprintf("✅ گفتگوی %s توسط %s پذیرفته شد.", shortID, cb.From.DisplayName()))
	b.answerCallback(ctx, cb.ID, "به گفتگو متصل شدید.")

	b.hub.Emit(bound.ID, realtime.EventOperatorConnected, map[string]any{
		"sessionId": bound.ID,
		"message":   "اپراتور به گفتگو پیوست. از این پس با پشتیبان انسانی صحبت می‌کنید.",
	})
	log.Printf("[telegram] operator accepted session=%s chat=%d", shortID, operatorChatID)
}

// handleReject resets the pending session to AI routing. The browser is
// always notified; silently dropping the session is not an option here.
func (b *Bridge) handleReject(ctx context.Context, cb *CallbackQuery, shortID string) {
	sess, err := b.store.ResolveShort(ctx, shortID)
	if err != nil {
		b.answerCallback(ctx, cb.ID, "گفتگو یافت نشد یا منقضی شده است.")
		return
	}

	if _, err := b.store.ClearOperator(ctx, sess.ID); err != nil {
		log.Printf("[telegram] reject failed session=%s: %v", shortID, err)
		b.answerCallback(ctx, cb.ID, "")
		return
	}

	b.editNotice(ctx, cb, shortID, fmt.Sprintf("❌ گفتگوی %s رد شد.", shortID))
	b.answerCallback(ctx, cb.ID, "درخواست رد شد.")

	b.hub.Emit(sess.ID, realtime.EventOperatorRejected, map[string]any{
		"sessionId": sess.ID,
		"message":   "در حال حاضر اپراتوری در دسترس نیست. گفتگو با دستیار هوشمند ادامه می‌یابد.",
	})
	log.Printf("[telegram] operator rejected session=%s", shortID)
}

func (b *Bridge) handleOperatorMessage(ctx context.Context, msg *Message) {
	if msg.Chat == nil || msg.Text == "" {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	sess, err := b.store.FindByOperator(ctx, chatID)
	if err != nil {
		if _, sendErr := b.api.sendMessage(ctx, chatID, "هیچ گفتگوی فعالی به شما متصل نیست.", nil); sendErr != nil {
			log.Printf("[telegram] notice send failed chat=%d: %v", chatID, sendErr)
		}
		return
	}

	if text == endCommand || strings.HasPrefix(text, endCommand+" ") {
		b.endSession(ctx, sess, chatID)
		return
	}

	if err := b.store.SaveMessage(ctx, model.Message{
		SessionID: sess.ID,
		Sender:    model.SenderOperator,
		Content:   text,
	}); err != nil {
		log.Printf("[telegram] save operator message failed session=%s: %v", sess.ShortID, err)
	}

	b.hub.Emit(sess.ID, realtime.EventOperatorMessage, map[string]any{
		"sessionId": sess.ID,
		"message":   text,
	})
}

// endSession is the one explicit "session ended" signal in the system.
func (b *Bridge) endSession(ctx context.Context, sess model.Session, chatID int64) {
	if err := b.store.End(ctx, sess.ID); err != nil {
		log.Printf("[telegram] end session failed session=%s: %v", sess.ShortID, err)
		return
	}

	b.hub.Emit(sess.ID, realtime.EventOperatorDisconnected, map[string]any{
		"sessionId": sess.ID,
		"message":   "اپراتور گفتگو را پایان داد.",
	})

	if _, err := b.api.sendMessage(ctx, chatID, fmt.Sprintf("گفتگوی %s پایان یافت.", sess.ShortID), nil); err != nil {
		log.Printf("[telegram] end confirmation failed chat=%d: %v", chatID, err)
	}
	log.Printf("[telegram] session ended session=%s", sess.ShortID)
}

func (b *Bridge) editNotice(ctx context.Context, cb *CallbackQuery, shortID, text string) {
	b.mu.Lock()
	messageID, ok := b.notices[shortID]
	if ok {
		delete(b.notices, shortID)
	}
	b.mu.Unlock()

	// Fall back to the message the button was attached to; the in-memory
	// notice index is lost on restart.
	chatID := b.adminChatID
	if !ok && cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
		messageID = cb.Message.MessageID
		ok = true
	}
	if !ok {
		return
	}

	if err := b.api.editMessageText(ctx, chatID, messageID, text); err != nil {
		log.Printf("[telegram] edit notice failed short=%s: %v", shortID, err)
	}
}

func (b *Bridge) answerCallback(ctx context.Context, callbackID, text string) {
	if err := b.api.answerCallbackQuery(ctx, callbackID, text); err != nil {
		log.Printf("[telegram] answer callback failed: %v", err)
	}
}

func callbackChatID(cb *CallbackQuery) int64 {
	if cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}
	if cb.From != nil {
		return cb.From.ID
	}
	return 0
}
