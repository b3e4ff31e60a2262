// Package escalation implements the admin review queue: a cache of every
// escalation, status tabs over it, and the reply and promote actions.
//
// Reply and promote do not reload the queue. Their effect is kept as a
// speculative patch, tagged with the id of the request that caused it, and
// layered over the cached server list when it is read. Reload replaces the
// cache and drops every patch, so a patch that disagrees with the backend
// lives at most until the next reload.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/clock"
)

// ErrNotFound is returned for an escalation id that is not in the cache.
var ErrNotFound = errors.New("escalation not found")

// Tab selects a status-filtered view of the queue.
type Tab string

const (
	TabAll      Tab = "all"
	TabOpen     Tab = client.StatusOpen
	TabResolved Tab = client.StatusResolved
	TabPromoted Tab = client.StatusPromoted
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabOpen, TabResolved, TabPromoted, TabAll}

// ParseTab maps a user-supplied name to a Tab.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(s))); t {
	case TabAll, TabOpen, TabResolved, TabPromoted:
		return t, nil
	case "":
		return TabOpen, nil
	default:
		return "", client.NewValidationError("status", fmt.Sprintf("unknown status %q (want open, resolved, promoted or all)", s))
	}
}

// Status buckets a raw backend status. Anything that is not resolved or
// promoted (missing, "pending", unknown) is open.
func Status(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case client.StatusResolved:
		return client.StatusResolved
	case client.StatusPromoted:
		return client.StatusPromoted
	default:
		return client.StatusOpen
	}
}

// Counts are tab totals. They are always taken over the whole queue, so
// Open+Resolved+Promoted == All whatever tab is active.
type Counts struct {
	All      int
	Open     int
	Resolved int
	Promoted int
}

// Of returns the count for tab.
func (c Counts) Of(tab Tab) int {
	switch tab {
	case TabOpen:
		return c.Open
	case TabResolved:
		return c.Resolved
	case TabPromoted:
		return c.Promoted
	default:
		return c.All
	}
}

// Gateway is the slice of the backend client used by the workflow.
type Gateway interface {
	ListEscalations(ctx context.Context, status string) ([]client.Escalation, error)
	GetEscalation(ctx context.Context, id int64) (*client.Escalation, error)
	ReplyToEscalation(ctx context.Context, id int64, question, answer string, resolvedAt time.Time) (*client.ReplyResult, error)
	PromoteToFAQ(ctx context.Context, id int64) (*client.PromoteResult, error)
}

// patch is a local change the backend has acknowledged but the cache has
// not been reloaded to reflect.
type patch struct {
	requestID    string
	escalationID int64
	status       string
	adminAnswer  *string
	resolvedAt   client.Timestamp
}

func (p patch) apply(e *client.Escalation) {
	e.Status = p.status
	if p.adminAnswer != nil {
		answer := *p.adminAnswer
		e.AdminAnswer = &answer
	}
	if !p.resolvedAt.IsZero() {
		e.ResolvedAt = p.resolvedAt
	}
}

// Workflow is the admin's escalation queue. Safe for concurrent use.
type Workflow struct {
	gateway Gateway
	clock   clock.Clock
	logger  *slog.Logger

	mu      sync.Mutex
	all     []client.Escalation
	patches []patch
	tab     Tab
}

// New creates an empty workflow showing the open tab.
func New(gateway Gateway, c clock.Clock, logger *slog.Logger) *Workflow {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{
		gateway: gateway,
		clock:   c,
		logger:  logger,
		all:     []client.Escalation{},
		tab:     TabOpen,
	}
}

// Reload replaces the cache with every escalation on the server and drops
// all speculative patches. On failure the cache is left as it was.
func (w *Workflow) Reload(ctx context.Context) error {
	list, err := w.gateway.ListEscalations(ctx, "")
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.patches) > 0 {
		w.logger.Debug("discarding speculative patches", "count", len(w.patches))
	}
	w.all = slices.Clone(list)
	if w.all == nil {
		w.all = []client.Escalation{}
	}
	w.patches = nil
	return nil
}

// Refresh re-fetches one escalation and replaces its cached copy, dropping
// any patches for it.
func (w *Workflow) Refresh(ctx context.Context, id int64) (client.Escalation, error) {
	esc, err := w.gateway.GetEscalation(ctx, id)
	if err != nil {
		if client.StatusCode(err) == 404 {
			return client.Escalation{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return client.Escalation{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.patches = slices.DeleteFunc(w.patches, func(p patch) bool { return p.escalationID == id })
	if i := w.indexLocked(id); i >= 0 {
		w.all[i] = *esc
	} else {
		w.all = append([]client.Escalation{*esc}, w.all...)
	}
	return *esc, nil
}

// SetTab changes the active tab.
func (w *Workflow) SetTab(tab Tab) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tab = tab
}

// Tab returns the active tab.
func (w *Workflow) Tab() Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tab
}

// All returns every cached escalation with patches applied.
func (w *Workflow) All() []client.Escalation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// Visible returns the escalations in the active tab.
func (w *Workflow) Visible() []client.Escalation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return filter(w.viewLocked(), w.tab)
}

// VisibleIn returns the escalations in tab, regardless of the active tab.
func (w *Workflow) VisibleIn(tab Tab) []client.Escalation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return filter(w.viewLocked(), tab)
}

// Counts returns the tab totals over the whole queue.
func (w *Workflow) Counts() Counts {
	w.mu.Lock()
	defer w.mu.Unlock()

	var c Counts
	for _, e := range w.viewLocked() {
		c.All++
		switch Status(e.Status) {
		case client.StatusResolved:
			c.Resolved++
		case client.StatusPromoted:
			c.Promoted++
		default:
			c.Open++
		}
	}
	return c
}

// Get returns the cached escalation with patches applied.
func (w *Workflow) Get(id int64) (client.Escalation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.getLocked(id)
}

// Pending returns the number of speculative patches not yet confirmed by a reload.
func (w *Workflow) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.patches)
}

// Reply answers an escalation. Blank text is rejected without a request;
// otherwise the text is sent as given. On success the cached copy becomes
// resolved with the answer and a local resolution time.
func (w *Workflow) Reply(ctx context.Context, id int64, text string) (*client.ReplyResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, client.NewValidationError("answer", "reply cannot be empty")
	}

	w.mu.Lock()
	esc, err := w.getLocked(id)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	resolvedAt := w.clock.Now()
	result, err := w.gateway.ReplyToEscalation(client.WithRequestID(ctx, requestID), id, esc.Question, text, resolvedAt)
	if err != nil {
		return nil, err
	}

	w.addPatch(patch{
		requestID:    requestID,
		escalationID: id,
		status:       client.StatusResolved,
		adminAnswer:  &text,
		resolvedAt:   client.NewTimestamp(resolvedAt),
	})
	w.logger.Info("escalation resolved", "escalation_id", id, "request_id", requestID)
	return result, nil
}

// Promote turns a resolved escalation with an admin answer into an FAQ and
// returns the new FAQ's id. Escalations that do not qualify are rejected
// without a request.
func (w *Workflow) Promote(ctx context.Context, id int64) (int64, error) {
	w.mu.Lock()
	esc, err := w.getLocked(id)
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := CanPromote(esc); err != nil {
		return 0, err
	}

	requestID := uuid.NewString()
	result, err := w.gateway.PromoteToFAQ(client.WithRequestID(ctx, requestID), id)
	if err != nil {
		return 0, err
	}

	w.addPatch(patch{
		requestID:    requestID,
		escalationID: id,
		status:       client.StatusPromoted,
	})
	w.logger.Info("escalation promoted", "escalation_id", id, "faq_id", result.FAQID, "request_id", requestID)
	return result.FAQID, nil
}

// CanPromote reports why e cannot be promoted, or nil if it can.
func CanPromote(e client.Escalation) error {
	if Status(e.Status) != client.StatusResolved {
		return client.NewValidationError("status", fmt.Sprintf("escalation %d is %s; only resolved escalations can be promoted", e.ID, Status(e.Status)))
	}
	if !e.HasAdminAnswer() {
		return client.NewValidationError("admin_answer", fmt.Sprintf("escalation %d has no admin answer", e.ID))
	}
	return nil
}

func (w *Workflow) addPatch(p patch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.patches = append(w.patches, p)
}

func (w *Workflow) indexLocked(id int64) int {
	return slices.IndexFunc(w.all, func(e client.Escalation) bool { return e.ID == id })
}

func (w *Workflow) getLocked(id int64) (client.Escalation, error) {
	i := w.indexLocked(id)
	if i < 0 {
		return client.Escalation{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	esc := w.all[i]
	for _, p := range w.patches {
		if p.escalationID == id {
			p.apply(&esc)
		}
	}
	return esc, nil
}

// viewLocked returns a copy of the cache with patches applied in order.
func (w *Workflow) viewLocked() []client.Escalation {
	view := slices.Clone(w.all)
	for _, p := range w.patches {
		for i := range view {
			if view[i].ID == p.escalationID {
				p.apply(&view[i])
			}
		}
	}
	return view
}

func filter(list []client.Escalation, tab Tab) []client.Escalation {
	if tab == TabAll {
		return list
	}
	out := make([]client.Escalation, 0, len(list))
	for _, e := range list {
		if Status(e.Status) == string(tab) {
			out = append(out, e)
		}
	}
	return out
}
