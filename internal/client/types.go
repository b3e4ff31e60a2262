package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Timestamp decodes the backend's datetime strings. The backend emits both
// zoned RFC 3339 values and naive ISO values without an offset; naive
// values are taken as UTC. JSON null decodes to the zero value.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// =============================================================================
// TYPES (matching the backend's JSON)
// =============================================================================

// User is the identity returned by login.
type User struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Session is one chat conversation in the sidebar list.
type Session struct {
	SessionID     string    `json:"session_id"`
	FirstQuestion string    `json:"first_question"`
	CreatedAt     Timestamp `json:"created_at,omitzero"`
}

// NewSessionLabel is shown for sessions without a first question yet.
const NewSessionLabel = "New conversation"

// Label returns the display label for the session.
func (s Session) Label() string {
	if strings.TrimSpace(s.FirstQuestion) == "" {
		return NewSessionLabel
	}
	return s.FirstQuestion
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAdmin     Role = "admin"
	// roleBot is what the backend stores for automated answers.
	roleBot Role = "bot"
)

// Normalize maps backend role spellings onto the three client roles.
func (r Role) Normalize() Role {
	switch strings.ToLower(string(r)) {
	case "user":
		return RoleUser
	case "admin":
		return RoleAdmin
	case string(roleBot), "assistant", "":
		return RoleAssistant
	default:
		return r
	}
}

// Message is a single chat message.
type Message struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Source       *string   `json:"source,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	Escalated    *bool     `json:"escalated,omitempty"`
	EscalationID *int64    `json:"escalation_id,omitempty"`
	CreatedAt    Timestamp `json:"created_at,omitzero"`
}

// Escalation statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusPromoted = "promoted"
)

// History is the full message log of a session plus the status of its
// most recent escalation (nil when the session was never escalated).
type History struct {
	SessionID        string    `json:"session_id"`
	Messages         []Message `json:"messages"`
	EscalationStatus *string   `json:"escalation_status"`
}

// Answer is the backend's reply to a student question.
type Answer struct {
	Answer       string  `json:"answer"`
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
	Escalated    bool    `json:"escalated"`
	EscalationID *int64  `json:"escalation_id"`
}

// ManualEscalation is the result of a student-initiated escalation.
type ManualEscalation struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

// Escalation is a student query handed to human review.
type Escalation struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	Question     string    `json:"question"`
	BotAnswer    *string   `json:"bot_answer,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	AdminAnswer  *string   `json:"admin_answer,omitempty"`
	Status       string    `json:"status"`
	ResolvedAt   Timestamp `json:"resolved_at,omitzero"`
	CreatedAt    Timestamp `json:"created_at,omitzero"`
	UserFeedback *string   `json:"user_feedback,omitempty"`
}

// HasAdminAnswer reports whether a non-blank admin answer is present.
func (e Escalation) HasAdminAnswer() bool {
	return e.AdminAnswer != nil && strings.TrimSpace(*e.AdminAnswer) != ""
}

// ReplyResult is returned by ReplyToEscalation.
type ReplyResult struct {
	Status string `json:"status"`
}

// PromoteResult is returned by PromoteToFAQ.
type PromoteResult struct {
	Status           string `json:"status"`
	FAQID            int64  `json:"faq_id"`
	EscalationStatus string `json:"escalation_status"`
}

// FAQQuestion is one phrasing of an FAQ.
type FAQQuestion struct {
	ID           int64  `json:"id"`
	QuestionText string `json:"question_text"`
}

// FAQ is an answer with its canonical question and alternate phrasings.
// The canonical question also appears among Questions.
type FAQ struct {
	ID                int64         `json:"id"`
	CanonicalQuestion string        `json:"canonical_question"`
	AnswerEN          string        `json:"answer_en"`
	Questions         []FAQQuestion `json:"questions"`
}

// Variants returns the question texts other than the canonical question.
func (f FAQ) Variants() []string {
	var out []string
	for _, q := range f.Questions {
		if q.QuestionText != f.CanonicalQuestion {
			out = append(out, q.QuestionText)
		}
	}
	return out
}

// IsCanonical reports whether text is this FAQ's canonical question.
func (f FAQ) IsCanonical(text string) bool {
	return strings.TrimSpace(text) == strings.TrimSpace(f.CanonicalQuestion)
}

// FAQInput creates an FAQ. Questions are the variants; the backend adds
// the canonical question to the stored set itself.
type FAQInput struct {
	CanonicalQuestion string   `json:"canonical_question" yaml:"canonical_question"`
	AnswerEN          string   `json:"answer_en" yaml:"answer_en"`
	Questions         []string `json:"questions" yaml:"questions"`
}

// FAQUpdate edits an FAQ. Nil fields are left unchanged; a non-nil
// Questions replaces every variant.
type FAQUpdate struct {
	CanonicalQuestion *string  `json:"canonical_question,omitempty"`
	AnswerEN          *string  `json:"answer_en,omitempty"`
	Questions         []string `json:"questions"`
}

// AddedQuestion is returned when a single variant is appended to an FAQ.
type AddedQuestion struct {
	Status   string `json:"status"`
	Question string `json:"question"`
}

// BulkUploadResult summarises a bulk FAQ upload.
type BulkUploadResult struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// Document is an ingested knowledge-base document.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	FileSize   *int64    `json:"file_size,omitempty"`
	CreatedAt  Timestamp `json:"created_at,omitzero"`
}

// UploadResult is returned after a document was ingested.
type UploadResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}
