package session

import "time"

// Mode governs where a session's inbound messages are routed.
type Mode string

const (
	ModeAI           Mode = "ai"
	ModePendingHuman Mode = "pending-human"
	ModeHuman        Mode = "human"
)

// ShortIDLength is the number of leading id characters used as the
// operator-facing reference. Truncation collisions are a known limitation;
// lookups resolve to the oldest matching session.
const ShortIDLength = 12

// UserInfo carries free-form display metadata captured at handoff time.
// It is never validated.
type UserInfo struct {
	Name string `json:"name,omitempty"`
	Page string `json:"page,omitempty"`
}

// Session is one browser visitor's conversation context. The id is generated
// client-side and persisted in the widget's local storage across reloads.
type Session struct {
	ID             string     `json:"id"`
	ShortID        string     `json:"shortId"`
	Mode           Mode       `json:"mode"`
	OperatorChatID int64      `json:"-"`
	UserInfo       UserInfo   `json:"userInfo,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
}

// Bound reports whether an operator currently owns the session.
func (s Session) Bound() bool {
	return s.Mode == ModeHuman && s.OperatorChatID != 0
}

// ShortID truncates a session id to its operator-facing reference.
func ShortID(id string) string {
	if len(id) <= ShortIDLength {
		return id
	}
	return id[:ShortIDLength]
}

// Known message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
	SenderOperator  = "operator"
)

// Message persists individual turns for history/debug.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
