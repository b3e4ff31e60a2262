package client

import (
	"context"
	"net/http"
	"net/url"
)

// =============================================================================
// AUTH
// =============================================================================

// Login signs in by email. The backend creates the user on first login and
// returns the existing identity afterwards.
func (c *Client) Login(ctx context.Context, email, name string) (*User, error) {
	in := struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	}{Email: email, Name: name}

	var user User
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// =============================================================================
// CHAT
// =============================================================================

// ListSessions returns the user's chat sessions, most recent first.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	path := "/api/chat/sessions?" + url.Values{"user_id": {userID}}.Encode()

	var result struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.doJSON(ctx, "list_sessions", http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if result.Sessions == nil {
		return []Session{}, nil
	}
	return result.Sessions, nil
}

// CreateSession starts a new chat session and returns its id.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	in := struct {
		UserID string `json:"user_id"`
	}{UserID: userID}

	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, "create_session", http.MethodPost, "/api/chat/new", in, &result); err != nil {
		return "", err
	}
	return result.SessionID, nil
}

// GetHistory returns the full message log of a session and its escalation status.
func (c *Client) GetHistory(ctx context.Context, sessionID string) (*History, error) {
	var history History
	if err := c.doJSON(ctx, "get_history", http.MethodGet, "/api/chat/"+url.PathEscape(sessionID), nil, &history); err != nil {
		return nil, err
	}
	if history.SessionID == "" {
		history.SessionID = sessionID
	}
	return &history, nil
}

// SendMessage asks a question in a session. The answer may report that the
// backend escalated the question because of low confidence.
func (c *Client) SendMessage(ctx context.Context, sessionID, question string) (*Answer, error) {
	in := struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}{SessionID: sessionID, Question: question}

	var answer Answer
	if err := c.doJSON(ctx, "send_message", http.MethodPost, "/api/chat/send", in, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// EscalateManually hands the session's latest question to human review.
func (c *Client) EscalateManually(ctx context.Context, sessionID string) (*ManualEscalation, error) {
	var result ManualEscalation
	path := "/api/escalation/manual/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, "escalate_manually", http.MethodPost, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
