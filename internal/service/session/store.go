package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/hamyarchat/backend/internal/model/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyBound    = errors.New("conflicting operator binding")
)

// Store owns all per-session routing state: the forward id map, a reverse
// operator-chat index so operator replies resolve without scanning, and the
// message history per session. Handlers receive an injected *Store instance;
// there is no package-level singleton. All state is process-local and lost on
// restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	messages map[string][]model.Message
	// byOperator maps a bound operator chat id to exactly one session id.
	byOperator map[int64]string
	// order keeps session ids in creation order so shortId lookups resolve
	// deterministically (oldest match wins) when truncated ids collide.
	order []string
}

// NewStore bootstraps the in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions:   make(map[string]model.Session),
		messages:   make(map[string][]model.Message),
		byOperator: make(map[int64]string),
	}
}

// Create registers a new session for the given client id. An empty id gets a
// server-generated one. Creating an existing id returns the stored session.
func (s *Store) Create(_ context.Context, id string) (model.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id), nil
}

// getOrCreateLocked returns the stored session or registers a fresh one.
// Callers hold s.mu.
func (s *Store) getOrCreateLocked(id string) model.Session {
	if existing, ok := s.sessions[id]; ok {
		return existing
	}

	sess := model.Session{
		ID:        id,
		ShortID:   model.ShortID(id),
		Mode:      model.ModeAI,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[id] = sess
	s.messages[id] = make([]model.Message, 0, 16)
	s.order = append(s.order, id)
	return sess
}

// Get retrieves a session by identifier.
func (s *Store) Get(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// GetOrCreate returns the session for id, creating it on first contact.
func (s *Store) GetOrCreate(ctx context.Context, id string) (model.Session, error) {
	if sess, err := s.Get(ctx, id); err == nil {
		return sess, nil
	}
	return s.Create(ctx, id)
}

// MarkPending flags a session as waiting for an operator and records the
// user-supplied display metadata, creating the session on first contact. The
// get-or-create and the mutation happen under one lock so a concurrent End
// cannot leave a half-formed session behind.
func (s *Store) MarkPending(_ context.Context, id string, info model.UserInfo) (model.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(id)
	sess.Mode = model.ModePendingHuman
	sess.UserInfo = info
	s.sessions[id] = sess
	return sess, nil
}

// BindOperator attaches an operator chat to the session and flips it to human
// mode. Rebinding the same operator is a no-op, so the reverse index never
// holds duplicate entries. Binding fails when the session is owned by a
// different operator, and also when the operator chat already owns a different
// session: an operator handles one conversation at a time and must /end it
// before accepting another, otherwise the first visitor would be left talking
// into a binding whose replies all route to the newer session.
func (s *Store) BindOperator(_ context.Context, id string, operatorChatID int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	if sess.OperatorChatID != 0 && sess.OperatorChatID != operatorChatID {
		return model.Session{}, ErrAlreadyBound
	}
	if owned, ok := s.byOperator[operatorChatID]; ok && owned != id {
		return model.Session{}, ErrAlreadyBound
	}

	if sess.OperatorChatID == 0 {
		now := time.Now().UTC()
		sess.AcceptedAt = &now
	}
	sess.Mode = model.ModeHuman
	sess.OperatorChatID = operatorChatID
	s.sessions[id] = sess
	s.byOperator[operatorChatID] = id
	return sess, nil
}

// ClearOperator drops any operator binding and returns the session to AI
// routing. Used on handoff rejection and operator disconnect.
func (s *Store) ClearOperator(_ context.Context, id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	if sess.OperatorChatID != 0 {
		delete(s.byOperator, sess.OperatorChatID)
	}
	sess.OperatorChatID = 0
	sess.Mode = model.ModeAI
	s.sessions[id] = sess
	return sess, nil
}

// End removes the session entirely. Only an explicit end signal reaches here;
// there is no expiry or eviction policy.
func (s *Store) End(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	if sess.OperatorChatID != 0 {
		delete(s.byOperator, sess.OperatorChatID)
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ResolveShort maps an operator-facing short id back to a session. On
// truncation collisions the oldest session wins.
func (s *Store) ResolveShort(_ context.Context, shortID string) (model.Session, error) {
	if shortID == "" {
		return model.Session{}, ErrSessionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if sess, ok := s.sessions[id]; ok && sess.ShortID == shortID {
			return sess, nil
		}
	}
	return model.Session{}, ErrSessionNotFound
}

// FindByOperator resolves the session currently bound to an operator chat.
func (s *Store) FindByOperator(_ context.Context, operatorChatID int64) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOperator[operatorChatID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// SaveMessage appends a turn to the session history.
func (s *Store) SaveMessage(_ context.Context, message model.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// History returns a copy of the stored messages for the session.
func (s *Store) History(_ context.Context, id string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]model.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Counts reports coarse session totals per mode for the health endpoint.
func (s *Store) Counts(_ context.Context) map[model.Mode]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.Mode]int, 3)
	for _, sess := range s.sessions {
		counts[sess.Mode]++
	}
	return counts
}
