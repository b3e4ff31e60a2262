package faq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
)

// ErrNotFound is returned for an FAQ id that is not in the cache.
var ErrNotFound = errors.New("faq not found")

// Gateway is the slice of the backend client used by the editor.
type Gateway interface {
	ListFAQs(ctx context.Context) ([]client.FAQ, error)
	CreateFAQ(ctx context.Context, input client.FAQInput) (*client.FAQ, error)
	UpdateFAQ(ctx context.Context, id int64, input client.FAQUpdate) (*client.FAQ, error)
	DeleteFAQ(ctx context.Context, id int64) error
	AddFAQQuestion(ctx context.Context, id int64, questionText string) (*client.AddedQuestion, error)
	BulkUploadFAQs(ctx context.Context, items []client.FAQInput) (*client.BulkUploadResult, error)
}

// Editor keeps a cache of the FAQ list and applies edits to it as the
// backend confirms them.
type Editor struct {
	gateway Gateway
	logger  *slog.Logger

	mu   sync.Mutex
	faqs []client.FAQ
}

// NewEditor creates an editor with an empty cache.
func NewEditor(gateway Gateway, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Editor{gateway: gateway, logger: logger, faqs: []client.FAQ{}}
}

// Reload replaces the cache with the server's list.
func (e *Editor) Reload(ctx context.Context) error {
	faqs, err := e.gateway.ListFAQs(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faqs = slices.Clone(faqs)
	if e.faqs == nil {
		e.faqs = []client.FAQ{}
	}
	return nil
}

// List returns the cached FAQs.
func (e *Editor) List() []client.FAQ {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.faqs)
}

// Search returns cached FAQs whose canonical question or answer contains
// term, ignoring case. A blank term matches everything.
func (e *Editor) Search(term string) []client.FAQ {
	term = strings.ToLower(strings.TrimSpace(term))
	all := e.List()
	if term == "" {
		return all
	}
	return slices.DeleteFunc(all, func(f client.FAQ) bool {
		return !strings.Contains(strings.ToLower(f.CanonicalQuestion), term) &&
			!strings.Contains(strings.ToLower(f.AnswerEN), term)
	})
}

// Get returns a cached FAQ.
func (e *Editor) Get(id int64) (client.FAQ, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(id); i >= 0 {
		return e.faqs[i], nil
	}
	return client.FAQ{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Create validates the form and creates the FAQ.
func (e *Editor) Create(ctx context.Context, form Form) (*client.FAQ, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	created, err := e.gateway.CreateFAQ(ctx, form.Input())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.faqs = append([]client.FAQ{*created}, e.faqs...)
	e.mu.Unlock()

	e.logger.Info("faq created", "faq_id", created.ID, "questions", len(created.Questions))
	return created, nil
}

// Update validates the form and replaces the FAQ's question, answer and variants.
func (e *Editor) Update(ctx context.Context, id int64, form Form) (*client.FAQ, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	updated, err := e.gateway.UpdateFAQ(ctx, id, form.Update())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		e.faqs[i] = *updated
	}
	e.mu.Unlock()

	e.logger.Info("faq updated", "faq_id", id)
	return updated, nil
}

// Delete removes an FAQ and its variants.
func (e *Editor) Delete(ctx context.Context, id int64) error {
	if err := e.gateway.DeleteFAQ(ctx, id); err != nil {
		return err
	}

	e.mu.Lock()
	e.faqs = slices.DeleteFunc(e.faqs, func(f client.FAQ) bool { return f.ID == id })
	e.mu.Unlock()

	e.logger.Info("faq deleted", "faq_id", id)
	return nil
}

// AddQuestion appends one variant. Blank text, or text the cached FAQ
// already has, is rejected without a request.
func (e *Editor) AddQuestion(ctx context.Context, id int64, text string) (*client.AddedQuestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, client.NewValidationError("question_text", "question cannot be empty")
	}

	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		exists := slices.ContainsFunc(e.faqs[i].Questions, func(q client.FAQQuestion) bool {
			return q.QuestionText == text
		})
		if exists {
			e.mu.Unlock()
			return nil, client.NewValidationError("question_text", "this question already exists for the FAQ")
		}
	}
	e.mu.Unlock()

	added, err := e.gateway.AddFAQQuestion(ctx, id, text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if i := e.indexLocked(id); i >= 0 {
		e.faqs[i].Questions = append(e.faqs[i].Questions, client.FAQQuestion{QuestionText: added.Question})
	}
	e.mu.Unlock()
	return added, nil
}

// BulkUpload sends parsed items in one request. The cache is not touched;
// call Reload to pick up the inserted FAQs.
func (e *Editor) BulkUpload(ctx context.Context, items []client.FAQInput) (*client.BulkUploadResult, error) {
	if len(items) == 0 {
		return nil, client.NewValidationError("file", "bulk upload contains no FAQs")
	}
	result, err := e.gateway.BulkUploadFAQs(ctx, items)
	if err != nil {
		return nil, err
	}
	e.logger.Info("faq bulk upload", "inserted", result.Inserted, "skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}

func (e *Editor) indexLocked(id int64) int {
	return slices.IndexFunc(e.faqs, func(f client.FAQ) bool { return f.ID == id })
}
