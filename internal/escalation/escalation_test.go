package escalation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/clock"
	"github.com/raphaelgruber/helpdesk-go/internal/escalation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

type replyCall struct {
	id         int64
	question   string
	answer     string
	resolvedAt time.Time
	requestID  string
}

type fakeGateway struct {
	list       []client.Escalation
	listErr    error
	replyErr   error
	promoteErr error

	listCalls    int
	replies      []replyCall
	promotions   []int64
	promoteReqID string
}

func (f *fakeGateway) ListEscalations(ctx context.Context, status string) ([]client.Escalation, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]client.Escalation(nil), f.list...), nil
}

func (f *fakeGateway) GetEscalation(ctx context.Context, id int64) (*client.Escalation, error) {
	for _, e := range f.list {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, &client.RequestError{Op: "get_escalation", Status: 404, StatusText: "Not Found"}
}

func (f *fakeGateway) ReplyToEscalation(ctx context.Context, id int64, question, answer string, resolvedAt time.Time) (*client.ReplyResult, error) {
	f.replies = append(f.replies, replyCall{id, question, answer, resolvedAt, client.RequestIDFrom(ctx)})
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return &client.ReplyResult{Status: "resolved"}, nil
}

func (f *fakeGateway) PromoteToFAQ(ctx context.Context, id int64) (*client.PromoteResult, error) {
	f.promotions = append(f.promotions, id)
	f.promoteReqID = client.RequestIDFrom(ctx)
	if f.promoteErr != nil {
		return nil, f.promoteErr
	}
	return &client.PromoteResult{Status: "promoted", FAQID: 99, EscalationStatus: "promoted"}, nil
}

func strPtr(s string) *string { return &s }

func sampleQueue() []client.Escalation {
	return []client.Escalation{
		{ID: 1, Question: "Can I defer my exam?", Status: "open"},
		{ID: 2, Question: "Where is room B12?", Status: "resolved", AdminAnswer: strPtr("Second floor, east wing.")},
		{ID: 3, Question: "Is the gym free?", Status: "promoted", AdminAnswer: strPtr("Yes.")},
		{ID: 4, Question: "Legacy row", Status: ""},
		{ID: 5, Question: "Old workflow", Status: "pending"},
		{ID: 6, Question: "Resolved without answer", Status: "resolved"},
	}
}

func loaded(t *testing.T, gw *fakeGateway) *escalation.Workflow {
	t.Helper()
	if gw.list == nil {
		gw.list = sampleQueue()
	}
	w := escalation.New(gw, clock.Fake(now), nil)
	require.NoError(t, w.Reload(context.Background()))
	return w
}

func TestStatusBuckets(t *testing.T) {
	tests := map[string]string{
		"open":     client.StatusOpen,
		"resolved": client.StatusResolved,
		"promoted": client.StatusPromoted,
		"RESOLVED": client.StatusResolved,
		"":         client.StatusOpen,
		"pending":  client.StatusOpen,
		"whatever": client.StatusOpen,
	}
	for raw, want := range tests {
		assert.Equal(t, want, escalation.Status(raw), "raw %q", raw)
	}
}

func TestParseTab(t *testing.T) {
	tab, err := escalation.ParseTab("Resolved")
	require.NoError(t, err)
	assert.Equal(t, escalation.TabResolved, tab)

	tab, err = escalation.ParseTab("")
	require.NoError(t, err)
	assert.Equal(t, escalation.TabOpen, tab)

	_, err = escalation.ParseTab("closed")
	assert.True(t, client.IsValidation(err))
}

func TestCountsIndependentOfTab(t *testing.T) {
	w := loaded(t, &fakeGateway{})

	for _, tab := range escalation.Tabs {
		w.SetTab(tab)
		c := w.Counts()
		assert.Equal(t, 6, c.All)
		assert.Equal(t, 3, c.Open)
		assert.Equal(t, 2, c.Resolved)
		assert.Equal(t, 1, c.Promoted)
		assert.Equal(t, c.All, c.Open+c.Resolved+c.Promoted)
		assert.Len(t, w.Visible(), c.Of(tab))
	}
}

func TestVisibleFiltersByTab(t *testing.T) {
	w := loaded(t, &fakeGateway{})

	w.SetTab(escalation.TabOpen)
	var ids []int64
	for _, e := range w.Visible() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{1, 4, 5}, ids)

	assert.Len(t, w.VisibleIn(escalation.TabAll), 6)
	assert.Len(t, w.VisibleIn(escalation.TabPromoted), 1)
}

func TestReloadFailureKeepsCache(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	gw.listErr = &client.ConnectivityError{Op: "list_escalations", BaseURL: "http://localhost:8000"}
	err := w.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsConnectivity(err))
	assert.Len(t, w.All(), 6)
}

func TestReplyEmptyIsRejectedLocally(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := w.Reply(context.Background(), 1, text)
		require.Error(t, err)
		assert.True(t, client.IsValidation(err))
	}
	assert.Empty(t, gw.replies)
}

func TestReplyResolvesLocally(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 1, "  Yes, file form D-3.  ")
	require.NoError(t, err)

	require.Len(t, gw.replies, 1)
	call := gw.replies[0]
	assert.Equal(t, "Can I defer my exam?", call.question)
	assert.Equal(t, "  Yes, file form D-3.  ", call.answer, "text is sent as typed")
	assert.Equal(t, now, call.resolvedAt)
	assert.NotEmpty(t, call.requestID)

	e, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, client.StatusResolved, e.Status)
	require.NotNil(t, e.AdminAnswer)
	assert.Equal(t, "  Yes, file form D-3.  ", *e.AdminAnswer)
	assert.Equal(t, now, e.ResolvedAt.Time)

	c := w.Counts()
	assert.Equal(t, 2, c.Open)
	assert.Equal(t, 3, c.Resolved)
	assert.Equal(t, 1, gw.listCalls, "reply does not reload")
	assert.Equal(t, 1, w.Pending())
}

func TestReplyFailureLeavesCache(t *testing.T) {
	gw := &fakeGateway{replyErr: &client.RequestError{Op: "reply_escalation", Status: 500, StatusText: "Internal Server Error"}}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 1, "answer")
	require.Error(t, err)
	e, _ := w.Get(1)
	assert.Equal(t, "open", e.Status)
	assert.Zero(t, w.Pending())
}

func TestReplyUnknownID(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 404, "answer")
	assert.ErrorIs(t, err, escalation.ErrNotFound)
	assert.Empty(t, gw.replies)
}

func TestPromotePrerequisites(t *testing.T) {
	tests := []struct {
		name string
		id   int64
	}{
		{name: "open", id: 1},
		{name: "already promoted", id: 3},
		{name: "empty status counts as open", id: 4},
		{name: "resolved without admin answer", id: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			w := loaded(t, gw)

			_, err := w.Promote(context.Background(), tt.id)
			require.Error(t, err)
			assert.True(t, client.IsValidation(err))
			assert.Empty(t, gw.promotions, "no request for an ineligible escalation")
		})
	}
}

func TestPromote(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	faqID, err := w.Promote(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(99), faqID)
	assert.Equal(t, []int64{2}, gw.promotions)
	assert.NotEmpty(t, gw.promoteReqID)

	e, _ := w.Get(2)
	assert.Equal(t, client.StatusPromoted, e.Status)
	assert.Equal(t, 2, w.Counts().Promoted)
}

func TestReplyThenPromote(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 1, "Yes.")
	require.NoError(t, err)
	_, err = w.Promote(context.Background(), 1)
	require.NoError(t, err)

	e, _ := w.Get(1)
	assert.Equal(t, client.StatusPromoted, e.Status)
	assert.Equal(t, 2, w.Pending())
}

func TestReloadDiscardsPatches(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 1, "Yes.")
	require.NoError(t, err)

	// The backend never recorded the reply; the server view wins.
	require.NoError(t, w.Reload(context.Background()))
	assert.Zero(t, w.Pending())
	e, _ := w.Get(1)
	assert.Equal(t, "open", e.Status)
	assert.Nil(t, e.AdminAnswer)
}

func TestRefreshReplacesOneEntry(t *testing.T) {
	gw := &fakeGateway{}
	w := loaded(t, gw)

	_, err := w.Reply(context.Background(), 1, "Yes.")
	require.NoError(t, err)

	gw.list[0].Status = "resolved"
	gw.list[0].AdminAnswer = strPtr("Server says yes.")
	e, err := w.Refresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Server says yes.", *e.AdminAnswer)
	assert.Zero(t, w.Pending())

	_, err = w.Refresh(context.Background(), 404)
	assert.True(t, errors.Is(err, escalation.ErrNotFound))
}

func TestCanPromote(t *testing.T) {
	assert.NoError(t, escalation.CanPromote(client.Escalation{Status: "resolved", AdminAnswer: strPtr("x")}))
	assert.Error(t, escalation.CanPromote(client.Escalation{Status: "resolved", AdminAnswer: strPtr("  ")}))
	assert.Error(t, escalation.CanPromote(client.Escalation{Status: "open", AdminAnswer: strPtr("x")}))
}
