package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	sessionModel "github.com/hamyarchat/backend/internal/model/session"
)

// FallbackText is returned verbatim whenever the completion call fails.
const FallbackText = "متأسفانه در حال حاضر امکان پاسخ‌گویی خودکار وجود ندارد. در صورت تمایل می‌توانید با اپراتور انسانی ما گفت‌وگو کنید."

const (
	defaultTimeout      = 30 * time.Second
	defaultHistoryLimit = 10
)

// Reply is the gateway's answer plus the routing hint derived from it.
type Reply struct {
	Text          string `json:"text"`
	ShouldHandoff bool   `json:"shouldHandoff"`
}

// Config tunes the gateway. Zero values fall back to the fixed defaults.
type Config struct {
	Timeout      time.Duration
	HistoryLimit int
	Handoff      HandoffPolicy
}

// Gateway wraps the external completion model behind a single Respond call.
type Gateway struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	handoff      HandoffPolicy
	timeout      time.Duration
	historyLimit int
}

// NewGateway compiles the prompt/model chain around the supplied chat model.
func NewGateway(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Gateway, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Handoff == nil {
		cfg.Handoff = DefaultHandoffPolicy
	}

	return &Gateway{
		chain:        runnable,
		handoff:      cfg.Handoff,
		timeout:      cfg.Timeout,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// Respond sends the message plus recent history to the completion model.
// It never returns an error: transport failures, timeouts and empty replies
// all fail open to the fixed fallback text with ShouldHandoff set, and a
// successful reply is still screened by the handoff policy.
func (g *Gateway) Respond(ctx context.Context, message string, history []sessionModel.Message) Reply {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	input := map[string]any{
		"system":  systemPrompt,
		"history": g.buildHistoryMessages(history),
		"query":   message,
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		log.Printf("[ai] completion failed: %v", err)
		return Reply{Text: FallbackText, ShouldHandoff: true}
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		log.Printf("[ai] completion returned empty content")
		return Reply{Text: FallbackText, ShouldHandoff: true}
	}

	return Reply{Text: text, ShouldHandoff: g.handoff(text)}
}

func (g *Gateway) buildHistoryMessages(messages []sessionModel.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > g.historyLimit {
		startIdx = len(messages) - g.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case sessionModel.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case sessionModel.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
