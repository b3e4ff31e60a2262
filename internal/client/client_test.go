package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient starts an httptest server with handler and returns a client
// pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...client.Option) (*client.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, opts...), srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@uni.edu", body["email"])
		assert.Equal(t, "Ada", body["name"])

		writeJSON(t, w, map[string]string{"user_id": "u1", "email": "ada@uni.edu", "name": "ada"})
	})

	user, err := c.Login(context.Background(), "ada@uni.edu", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "ada", user.Name)
}

func TestListSessions(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/sessions", r.URL.Path)
		assert.Equal(t, "u 1", r.URL.Query().Get("user_id"))
		io.WriteString(w, `{"sessions":[
			{"session_id":"s2","first_question":"Where is the library?","created_at":"2026-02-01T10:00:00.123456"},
			{"session_id":"s1","first_question":null,"created_at":"2026-01-31T09:00:00+00:00"}
		]}`)
	})

	sessions, err := c.ListSessions(context.Background(), "u 1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].SessionID)
	assert.Equal(t, "Where is the library?", sessions[0].Label())
	assert.Equal(t, client.NewSessionLabel, sessions[1].Label())
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 123456000, time.UTC), sessions[0].CreatedAt.Time)
}

func TestListSessionsMissingKeyYieldsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	sessions, err := c.ListSessions(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestGetHistory(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/s1", r.URL.Path)
		io.WriteString(w, `{"session_id":"s1","messages":[
			{"role":"user","content":"Hi","created_at":"2026-02-01 10:00:00"},
			{"role":"bot","content":"Hello","created_at":"2026-02-01T10:00:01"}
		],"escalation_status":"open"}`)
	})

	history, err := c.GetHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, client.RoleAssistant, history.Messages[1].Role.Normalize())
	require.NotNil(t, history.EscalationStatus)
	assert.Equal(t, client.StatusOpen, *history.EscalationStatus)
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/send", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"session_id": "s1", "question": "Deadline?"}, body)
		io.WriteString(w, `{"answer":"Friday","source":"handbook.pdf","confidence":0.31,"escalated":true,"escalation_id":7}`)
	})

	answer, err := c.SendMessage(context.Background(), "s1", "Deadline?")
	require.NoError(t, err)
	assert.Equal(t, "Friday", answer.Answer)
	assert.True(t, answer.Escalated)
	require.NotNil(t, answer.EscalationID)
	assert.Equal(t, int64(7), *answer.EscalationID)
}

func TestNonSuccessStatusIsRequestError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"FAQ not found"}`, http.StatusNotFound)
	})

	err := c.DeleteFAQ(context.Background(), 12)
	require.Error(t, err)

	var reqErr *client.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusNotFound, reqErr.Status)
	assert.Equal(t, "Not Found", reqErr.StatusText)
	assert.Contains(t, reqErr.Body, "FAQ not found")
	assert.Equal(t, "delete_faq", reqErr.Op)
	assert.True(t, client.IsRequest(err))
	assert.False(t, client.IsConnectivity(err))
	assert.Equal(t, http.StatusNotFound, client.StatusCode(err))
}

func TestUnreachableBackendIsConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := client.New(base)
	_, err := c.ListSessions(context.Background(), "u1")
	require.Error(t, err)

	var connErr *client.ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, base, connErr.BaseURL)
	assert.Contains(t, connErr.Hint(), base)
	assert.True(t, client.IsConnectivity(err))
	assert.False(t, client.IsRequest(err))
}

func TestCanceledContextIsNotConnectivityError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetHistory(ctx, "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, client.IsConnectivity(err))
}

func TestRequestIDFromContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		writeJSON(t, w, map[string]any{"status": "promoted", "faq_id": 3, "escalation_status": "promoted"})
	})

	ctx := client.WithRequestID(context.Background(), "req-42")
	_, err := c.PromoteToFAQ(ctx, 1)
	require.NoError(t, err)
}

func TestListEscalationsStatusFilter(t *testing.T) {
	var gotQuery atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/escalations/", r.URL.Path)
		gotQuery.Store(r.URL.RawQuery)
		io.WriteString(w, `[{"id":3,"question":"Q","status":"resolved","admin_answer":"A","confidence":0,"resolved_at":"2026-02-02T08:00:00"}]`)
	})

	escs, err := c.ListEscalations(context.Background(), client.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, "status=resolved", gotQuery.Load())
	require.Len(t, escs, 1)
	assert.True(t, escs[0].HasAdminAnswer())
	assert.False(t, escs[0].ResolvedAt.IsZero())

	_, err = c.ListEscalations(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", gotQuery.Load())
}

func TestReplyToEscalationSendsResolvedAt(t *testing.T) {
	resolvedAt := time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/escalations/9/reply", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "When is enrollment?", body["question"])
		assert.Equal(t, "Next Monday", body["answer"])
		assert.Equal(t, "2026-02-03T12:30:00Z", body["resolved_at"])
		io.WriteString(w, `{"status":"resolved"}`)
	})

	res, err := c.ReplyToEscalation(context.Background(), 9, "When is enrollment?", "Next Monday", resolvedAt)
	require.NoError(t, err)
	assert.Equal(t, "resolved", res.Status)
}

func TestPromoteToFAQ(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/escalations/4/promote/faq", r.URL.Path)
		io.WriteString(w, `{"status":"promoted_to_faq","faq_id":21,"escalation_status":"promoted"}`)
	})

	res, err := c.PromoteToFAQ(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(21), res.FAQID)
	assert.Equal(t, client.StatusPromoted, res.EscalationStatus)
}

func TestUploadDocumentStreamsMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/documents/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "syllabus.txt", header.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", header.Header.Get("Content-Type"))
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "week 1: intro", string(content))

		io.WriteString(w, `{"id":"d-1","title":"syllabus.txt","chunks":1}`)
	})

	res, err := c.UploadDocument(context.Background(), client.Upload{
		Filename:    "syllabus.txt",
		ContentType: "text/plain; charset=utf-8",
		Body:        strings.NewReader("week 1: intro"),
	})
	require.NoError(t, err)
	assert.Equal(t, "d-1", res.ID)
	assert.Equal(t, 1, res.Chunks)
}

func TestUploadDocumentServerFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unsupported"}`, http.StatusInternalServerError)
	})

	_, err := c.UploadDocument(context.Background(), client.Upload{
		Filename: "big.pdf",
		Body:     strings.NewReader(strings.Repeat("x", 64*1024)),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, client.StatusCode(err))
}

// failingReader yields some bytes and then a local read error.
type failingReader struct {
	sent bool
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "%PDF-1.4 partial"), nil
	}
	return 0, r.err
}

func TestUploadDocumentLocalReadErrorIsNotConnectivity(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The body is cut short by the client; nothing is answered.
		io.Copy(io.Discard, r.Body)
	})

	diskErr := errors.New("disk read failed")
	_, err := c.UploadDocument(context.Background(), client.Upload{
		Filename: "handbook.pdf",
		Body:     &failingReader{err: diskErr},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, diskErr)
	assert.False(t, client.IsConnectivity(err))
	assert.False(t, client.IsRequest(err))
}

func TestTruncatedResponseIsNotConnectivity(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		io.WriteString(w, `{"sessions":`)
	})

	_, err := c.ListSessions(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "list_sessions: read response")
	assert.False(t, client.IsConnectivity(err))
}

func TestDeleteDocumentEscapesID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/admin/documents/a%2Fb", r.URL.EscapedPath())
		io.WriteString(w, `{"status":"deleted"}`)
	})

	require.NoError(t, c.DeleteDocument(context.Background(), "a/b"))
}

func TestMetricsRecorded(t *testing.T) {
	collector := metrics.NewCollector()
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[]`)
	}, client.WithMetrics(collector))

	_, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	_, err = c.ListDocuments(context.Background())
	require.Error(t, err)

	snap := collector.Snapshot()
	require.Len(t, snap.Operations, 1)
	assert.Equal(t, "list_documents", snap.Operations[0].Operation)
	assert.Equal(t, int64(2), snap.Operations[0].Count)
	assert.Equal(t, int64(1), snap.Operations[0].Failures)
}

func TestTimestampDecoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		zero bool
	}{
		{"null", `null`, time.Time{}, true},
		{"empty", `""`, time.Time{}, true},
		{"rfc3339", `"2026-01-02T03:04:05Z"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"naive micro", `"2026-01-02T03:04:05.5"`, time.Date(2026, 1, 2, 3, 4, 5, 500000000, time.UTC), false},
		{"space separated", `"2026-01-02 03:04:05"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts client.Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			if tt.zero {
				assert.True(t, ts.IsZero())
				return
			}
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts client.Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestRoleNormalize(t *testing.T) {
	assert.Equal(t, client.RoleAssistant, client.Role("bot").Normalize())
	assert.Equal(t, client.RoleAssistant, client.Role("assistant").Normalize())
	assert.Equal(t, client.RoleUser, client.Role("USER").Normalize())
	assert.Equal(t, client.RoleAdmin, client.Role("admin").Normalize())
}
