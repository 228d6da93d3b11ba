package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Thin Telegram Bot API client. Only the handful of methods the bridge needs
// are implemented.

const defaultAPIBaseURL = "https://api.telegram.org"

type telegramAPI struct {
	http    *http.Client
	baseURL string
	token   string
}

func newTelegramAPI(httpClient *http.Client, baseURL, token string) *telegramAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &telegramAPI{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Update is one inbound event from the Bot API, via webhook or long poll.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is a subset of the Bot API message object.
type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

// User is the sender of a message or callback.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// DisplayName renders a human-readable operator name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	username := strings.TrimSpace(u.Username)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case username != "":
		return "@" + username
	default:
		return ""
	}
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessageTextRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

type answerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type setWebhookRequest struct {
	URL string `json:"url"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (api *telegramAPI) call(ctx context.Context, method string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", api.baseURL, api.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var out apiResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		desc := strings.TrimSpace(out.Description)
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("telegram %s http %d: %s", method, resp.StatusCode, desc)
	}

	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("telegram %s: malformed result: %w", method, err)
		}
	}
	return nil
}

// sendMessage posts plain text, optionally with an inline keyboard, and
// returns the id of the sent message so it can be edited later.
func (api *telegramAPI) sendMessage(ctx context.Context, chatID int64, text string, keyboard *inlineKeyboardMarkup) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}

	var sent Message
	err := api.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}, &sent)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// editMessageText replaces the text of a previously sent message, dropping
// any keyboard it carried.
func (api *telegramAPI) editMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return api.call(ctx, "editMessageText", editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}, nil)
}

// answerCallbackQuery acknowledges a button press so the client stops its
// loading spinner.
func (api *telegramAPI) answerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return api.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
	}, nil)
}

// setWebhook points the Bot API at our inbound webhook endpoint.
func (api *telegramAPI) setWebhook(ctx context.Context, url string) error {
	return api.call(ctx, "setWebhook", setWebhookRequest{URL: url}, nil)
}

// deleteWebhook switches the bot back to long polling.
func (api *telegramAPI) deleteWebhook(ctx context.Context) error {
	return api.call(ctx, "deleteWebhook", struct{}{}, nil)
}

// getUpdates long-polls for new updates starting at offset and returns the
// updates plus the next offset to request.
func (api *telegramAPI) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d", api.baseURL, api.token, secs)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return nil, offset, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, offset, fmt.Errorf("telegram getUpdates http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		OK     bool     `json:"ok"`
		Result []Update `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}
