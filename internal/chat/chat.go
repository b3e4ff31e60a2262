// Package chat holds the student's chat state: the session list, the
// current session's message log and whether that session is escalated.
//
// The backend owns every entity. State here is a cache that is replaced
// wholesale on reload and patched optimistically in between. The escalation
// flag gates SendMessage; it is persisted to the session store only as a
// hint for the next start and is always recomputed from the server status
// when history is loaded.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/clock"
	"github.com/raphaelgruber/helpdesk-go/internal/store"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEscalated rejects a message while the chat is handed to an admin.
	ErrEscalated = errors.New("chat is escalated")

	// ErrNoSession is returned when an operation needs a session id and none was given.
	ErrNoSession = errors.New("no chat session selected")

	// ErrStaleResponse is returned by LoadHistory when a newer load (or a
	// session switch) started while this one was in flight. The response
	// was discarded and state was not touched.
	ErrStaleResponse = errors.New("history response superseded by a newer request")
)

// Gateway is the slice of the backend client used by the chat state.
type Gateway interface {
	ListSessions(ctx context.Context, userID string) ([]client.Session, error)
	CreateSession(ctx context.Context, userID string) (string, error)
	GetHistory(ctx context.Context, sessionID string) (*client.History, error)
	SendMessage(ctx context.Context, sessionID, question string) (*client.Answer, error)
	EscalateManually(ctx context.Context, sessionID string) (*client.ManualEscalation, error)
}

// Snapshot is a copy of the chat state at a point in time.
type Snapshot struct {
	Sessions         []client.Session
	CurrentSessionID string
	Messages         []client.Message
	Loading          bool
	Escalated        bool
}

// State is the chat state machine. All methods are safe for concurrent use;
// network calls are made without holding the lock.
type State struct {
	gateway Gateway
	store   store.Store
	clock   clock.Clock
	logger  *slog.Logger

	creates singleflight.Group

	mu        sync.Mutex
	sessions  []client.Session
	currentID string
	messages  []client.Message
	sending   int // in-flight SendMessage calls; loading while > 0
	escalated bool

	// historySeq increases on every LoadHistory start and on every
	// session switch. A history response is applied only if its sequence
	// number is still the latest.
	historySeq uint64
}

// New creates an empty chat state.
func New(gateway Gateway, s store.Store, c clock.Clock, logger *slog.Logger) *State {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &State{
		gateway:  gateway,
		store:    s,
		clock:    c,
		logger:   logger,
		sessions: []client.Session{},
		messages: []client.Message{},
	}
}

// Restore loads the last viewed session id and escalation flag from the
// session store. Both are hints until the next LoadHistory.
func (s *State) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.store.Load(store.KeyCurrentSession); ok {
		s.currentID = id
	}
	s.escalated = store.LoadBool(s.store, store.KeyEscalated)
}

// LoadSessions replaces the session list with the server's. On failure the
// list is emptied and the error returned.
func (s *State) LoadSessions(ctx context.Context, userID string) ([]client.Session, error) {
	sessions, err := s.gateway.ListSessions(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.sessions = []client.Session{}
		return nil, err
	}
	s.sessions = slices.Clone(sessions)
	if s.sessions == nil {
		s.sessions = []client.Session{}
	}
	return slices.Clone(s.sessions), nil
}

// CreateSession starts a new session and makes it current. Concurrent
// calls for the same user share one backend request.
func (s *State) CreateSession(ctx context.Context, userID string) (string, error) {
	v, err, shared := s.creates.Do(userID, func() (any, error) {
		id, err := s.gateway.CreateSession(ctx, userID)
		if err != nil {
			return "", err
		}
		s.adoptNewSession(id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("create session deduplicated", "user_id", userID)
	}
	return v.(string), nil
}

func (s *State) adoptNewSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stub := client.Session{
		SessionID:     id,
		FirstQuestion: client.NewSessionLabel,
		CreatedAt:     client.NewTimestamp(s.clock.Now()),
	}
	s.sessions = append([]client.Session{stub}, s.sessions...)
	s.currentID = id
	s.messages = []client.Message{}
	s.escalated = false
	s.historySeq++

	s.persistLocked()
}

// LoadHistory replaces the message log with the server's and makes the
// session current. The escalation flag is recomputed from the server
// status alone: it is true exactly when the status is "open".
//
// If another LoadHistory or a session switch started after this call, the
// response is dropped and ErrStaleResponse returned.
func (s *State) LoadHistory(ctx context.Context, sessionID string) (*client.History, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	s.historySeq++
	seq := s.historySeq
	s.mu.Unlock()

	history, err := s.gateway.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.historySeq {
		s.logger.Debug("discarding stale history", "session_id", sessionID, "seq", seq, "latest", s.historySeq)
		return history, ErrStaleResponse
	}

	s.currentID = sessionID
	s.messages = normalizeMessages(history.Messages)
	s.escalated = history.EscalationStatus != nil && *history.EscalationStatus == client.StatusOpen

	if !s.hasSessionLocked(sessionID) {
		s.sessions = append([]client.Session{synthesizeSession(sessionID, s.messages, s.clock)}, s.sessions...)
	}

	s.persistLocked()
	return history, nil
}

// SendMessage posts a question to the current session. It fails with
// ErrEscalated, without any request, while the chat is escalated.
//
// The user's message is appended before the request and is kept if the
// request fails. On success the bot's answer is appended and, if the
// backend escalated the question, the chat becomes escalated.
func (s *State) SendMessage(ctx context.Context, sessionID, text string) (*client.Answer, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if strings.TrimSpace(text) == "" {
		return nil, client.NewValidationError("message", "message cannot be empty")
	}

	s.mu.Lock()
	if s.escalated {
		s.mu.Unlock()
		return nil, ErrEscalated
	}
	if sessionID == s.currentID {
		s.messages = append(s.messages, client.Message{
			Role:      client.RoleUser,
			Content:   text,
			CreatedAt: client.NewTimestamp(s.clock.Now()),
		})
	}
	s.sending++
	s.mu.Unlock()

	answer, err := s.gateway.SendMessage(ctx, sessionID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending--

	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if sessionID != s.currentID {
		// The user moved to another session; its history load will show this exchange.
		return answer, nil
	}

	s.messages = append(s.messages, answerMessage(answer, s.clock))
	s.labelSessionLocked(sessionID, text)
	if answer.Escalated {
		s.escalated = true
		s.persistLocked()
	}
	return answer, nil
}

// EscalateManually hands the session to a human. On success the chat is
// escalated; only a later LoadHistory can clear the flag.
func (s *State) EscalateManually(ctx context.Context, sessionID string) (*client.ManualEscalation, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	result, err := s.gateway.EscalateManually(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalated = true
	s.persistLocked()

	s.logger.Info("chat escalated", "session_id", sessionID, "escalation_id", result.ID)
	return result, nil
}

// Reset clears the in-memory chat state and the persisted chat hints.
// In-flight history loads are invalidated.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = []client.Session{}
	s.currentID = ""
	s.messages = []client.Message{}
	s.escalated = false
	s.historySeq++

	for _, key := range []string{store.KeyCurrentSession, store.KeyEscalated} {
		if err := s.store.Delete(key); err != nil {
			s.logger.Warn("failed to clear chat hint", "key", key, "error", err)
		}
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Sessions:         slices.Clone(s.sessions),
		CurrentSessionID: s.currentID,
		Messages:         slices.Clone(s.messages),
		Loading:          s.sending > 0,
		Escalated:        s.escalated,
	}
}

// Sessions returns the session list, most recent first.
func (s *State) Sessions() []client.Session { return s.Snapshot().Sessions }

// CurrentSessionID returns the current session id, or "".
func (s *State) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Messages returns the current session's messages.
func (s *State) Messages() []client.Message { return s.Snapshot().Messages }

// Loading reports whether a message is being sent.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending > 0
}

// Escalated reports whether the current chat is escalated.
func (s *State) Escalated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalated
}

// persistLocked writes the chat hints. Persistence failures are logged and
// otherwise ignored: the store is a hint, the server is the truth.
// Caller must hold the lock.
func (s *State) persistLocked() {
	if s.currentID != "" {
		if err := s.store.Save(store.KeyCurrentSession, s.currentID); err != nil {
			s.logger.Warn("failed to persist current session", "error", err)
		}
	}
	if err := store.SaveBool(s.store, store.KeyEscalated, s.escalated); err != nil {
		s.logger.Warn("failed to persist escalation flag", "error", err)
	}
}

func (s *State) hasSessionLocked(id string) bool {
	return slices.ContainsFunc(s.sessions, func(sess client.Session) bool {
		return sess.SessionID == id
	})
}

// labelSessionLocked gives a freshly created session its first question as label.
func (s *State) labelSessionLocked(id, text string) {
	for i := range s.sessions {
		if s.sessions[i].SessionID != id {
			continue
		}
		if s.sessions[i].FirstQuestion == "" || s.sessions[i].FirstQuestion == client.NewSessionLabel {
			s.sessions[i].FirstQuestion = text
		}
		return
	}
}

func normalizeMessages(in []client.Message) []client.Message {
	out := make([]client.Message, len(in))
	for i, m := range in {
		m.Role = m.Role.Normalize()
		out[i] = m
	}
	return out
}

// synthesizeSession builds a sidebar entry for a session that was opened
// by id without being in the loaded list.
func synthesizeSession(id string, messages []client.Message, c clock.Clock) client.Session {
	sess := client.Session{
		SessionID:     id,
		FirstQuestion: client.NewSessionLabel,
		CreatedAt:     client.NewTimestamp(c.Now()),
	}
	if len(messages) > 0 {
		if strings.TrimSpace(messages[0].Content) != "" {
			sess.FirstQuestion = messages[0].Content
		}
		if !messages[0].CreatedAt.IsZero() {
			sess.CreatedAt = messages[0].CreatedAt
		}
	}
	return sess
}

func answerMessage(a *client.Answer, c clock.Clock) client.Message {
	msg := client.Message{
		Role:         client.RoleAssistant,
		Content:      a.Answer,
		Confidence:   &a.Confidence,
		Escalated:    &a.Escalated,
		EscalationID: a.EscalationID,
		CreatedAt:    client.NewTimestamp(c.Now()),
	}
	if a.Source != "" {
		source := a.Source
		msg.Source = &source
	}
	return msg
}
