package faq_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/faq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faqBackend mimics the admin FAQ routes: the canonical question is merged
// into the variant set on create and update.
type faqBackend struct {
	mu     sync.Mutex
	nextID int64
	faqs   map[int64]*client.FAQ
	calls  int
}

func newFAQBackend(t *testing.T) (*faqBackend, *client.Client) {
	t.Helper()
	b := &faqBackend{nextID: 1, faqs: map[int64]*client.FAQ{}}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, client.New(srv.URL)
}

func questionSet(canonical string, variants []string) []client.FAQQuestion {
	set := []string{strings.TrimSpace(canonical)}
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(set, v) {
			set = append(set, v)
		}
	}
	out := make([]client.FAQQuestion, len(set))
	for i, q := range set {
		out[i] = client.FAQQuestion{ID: int64(i + 1), QuestionText: q}
	}
	return out
}

func (b *faqBackend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++

	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/admin/faqs/")

	switch {
	case r.Method == http.MethodGet && path == "":
		list := []client.FAQ{}
		for id := b.nextID - 1; id >= 1; id-- {
			if f, ok := b.faqs[id]; ok {
				list = append(list, *f)
			}
		}
		json.NewEncoder(w).Encode(list)

	case r.Method == http.MethodPost && path == "":
		var in client.FAQInput
		json.NewDecoder(r.Body).Decode(&in)
		f := &client.FAQ{
			ID:                b.nextID,
			CanonicalQuestion: strings.TrimSpace(in.CanonicalQuestion),
			AnswerEN:          strings.TrimSpace(in.AnswerEN),
			Questions:         questionSet(in.CanonicalQuestion, in.Questions),
		}
		b.faqs[f.ID] = f
		b.nextID++
		json.NewEncoder(w).Encode(f)

	case r.Method == http.MethodPost && path == "bulk-upload":
		var items []client.FAQInput
		json.NewDecoder(r.Body).Decode(&items)
		json.NewEncoder(w).Encode(client.BulkUploadResult{Inserted: len(items), Errors: []string{}})

	case strings.HasSuffix(path, "/questions") && r.Method == http.MethodPost:
		id, _ := strconv.ParseInt(strings.TrimSuffix(path, "/questions"), 10, 64)
		var in struct {
			QuestionText string `json:"question_text"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		f := b.faqs[id]
		f.Questions = append(f.Questions, client.FAQQuestion{ID: int64(len(f.Questions) + 1), QuestionText: in.QuestionText})
		json.NewEncoder(w).Encode(client.AddedQuestion{Status: "added", Question: in.QuestionText})

	default:
		id, err := strconv.ParseInt(path, 10, 64)
		f, ok := b.faqs[id]
		if err != nil || !ok {
			http.Error(w, `{"detail":"FAQ not found"}`, http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPut:
			var in client.FAQUpdate
			json.NewDecoder(r.Body).Decode(&in)
			if in.CanonicalQuestion != nil {
				f.CanonicalQuestion = *in.CanonicalQuestion
			}
			if in.AnswerEN != nil {
				f.AnswerEN = *in.AnswerEN
			}
			if in.Questions != nil {
				f.Questions = questionSet(f.CanonicalQuestion, in.Questions)
			}
			json.NewEncoder(w).Encode(f)
		case http.MethodDelete:
			delete(b.faqs, id)
			json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
		}
	}
}

func TestCreateRoundTrip(t *testing.T) {
	backend, c := newFAQBackend(t)
	editor := faq.NewEditor(c, nil)
	ctx := context.Background()

	created, err := editor.Create(ctx, faq.Form{
		CanonicalQuestion: "How do I reset my password?",
		Answer:            "Use the self-service portal.",
		Variants:          []string{"Forgot password", "Password reset"},
	})
	require.NoError(t, err)

	// Fetch it back through a fresh editor.
	fresh := faq.NewEditor(c, nil)
	require.NoError(t, fresh.Reload(ctx))
	got, err := fresh.Get(created.ID)
	require.NoError(t, err)

	var texts []string
	for _, q := range got.Questions {
		texts = append(texts, q.QuestionText)
	}
	assert.ElementsMatch(t, []string{"How do I reset my password?", "Forgot password", "Password reset"}, texts)
	assert.True(t, got.IsCanonical("How do I reset my password?"))
	assert.ElementsMatch(t, []string{"Forgot password", "Password reset"}, faq.FormFrom(got).Variants)
	assert.Equal(t, 2, backend.calls)
}

func TestCreateValidatesLocally(t *testing.T) {
	backend, c := newFAQBackend(t)
	editor := faq.NewEditor(c, nil)

	tests := []faq.Form{
		{CanonicalQuestion: "", Answer: "a"},
		{CanonicalQuestion: "q", Answer: "   "},
	}
	for _, form := range tests {
		_, err := editor.Create(context.Background(), form)
		require.Error(t, err)
		assert.True(t, client.IsValidation(err))
	}
	assert.Zero(t, backend.calls)
}

func TestFormInputCleansVariants(t *testing.T) {
	in := faq.Form{
		CanonicalQuestion: "  Q  ",
		Answer:            " A ",
		Variants:          []string{"Q", "", "  V1 ", "V1", "V2"},
	}.Input()

	assert.Equal(t, "Q", in.CanonicalQuestion)
	assert.Equal(t, "A", in.AnswerEN)
	assert.Equal(t, []string{"V1", "V2"}, in.Questions)

	upd := faq.Form{CanonicalQuestion: "Q", Answer: "A"}.Update()
	assert.NotNil(t, upd.Questions, "update always replaces variants")
	assert.Empty(t, upd.Questions)
}

func TestUpdateDeleteAndSearch(t *testing.T) {
	_, c := newFAQBackend(t)
	editor := faq.NewEditor(c, nil)
	ctx := context.Background()

	lib, err := editor.Create(ctx, faq.Form{CanonicalQuestion: "Library hours?", Answer: "8 to 22."})
	require.NoError(t, err)
	_, err = editor.Create(ctx, faq.Form{CanonicalQuestion: "Gym access?", Answer: "Free with student card."})
	require.NoError(t, err)

	assert.Len(t, editor.Search("LIBRARY"), 1)
	assert.Len(t, editor.Search("student card"), 1)
	assert.Len(t, editor.Search(""), 2)

	updated, err := editor.Update(ctx, lib.ID, faq.Form{
		CanonicalQuestion: "Library opening hours?",
		Answer:            "8 to 22, weekends 10 to 18.",
		Variants:          []string{"When is the library open?"},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Questions, 2)
	cached, _ := editor.Get(lib.ID)
	assert.Equal(t, "Library opening hours?", cached.CanonicalQuestion)

	require.NoError(t, editor.Delete(ctx, lib.ID))
	_, err = editor.Get(lib.ID)
	assert.ErrorIs(t, err, faq.ErrNotFound)
	assert.Len(t, editor.List(), 1)

	err = editor.Delete(ctx, 999)
	assert.Equal(t, 404, client.StatusCode(err))
}

func TestAddQuestion(t *testing.T) {
	backend, c := newFAQBackend(t)
	editor := faq.NewEditor(c, nil)
	ctx := context.Background()

	f, err := editor.Create(ctx, faq.Form{CanonicalQuestion: "Q", Answer: "A", Variants: []string{"V1"}})
	require.NoError(t, err)

	added, err := editor.AddQuestion(ctx, f.ID, "  V2 ")
	require.NoError(t, err)
	assert.Equal(t, "V2", added.Question)

	cached, _ := editor.Get(f.ID)
	assert.Len(t, cached.Questions, 3)

	before := backend.calls
	_, err = editor.AddQuestion(ctx, f.ID, "V1")
	assert.True(t, client.IsValidation(err), "duplicate is rejected locally")
	_, err = editor.AddQuestion(ctx, f.ID, " ")
	assert.True(t, client.IsValidation(err))
	assert.Equal(t, before, backend.calls)
}

func TestParseBulk(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  faq.Format
		want    int
		wantErr bool
	}{
		{
			name:   "json",
			data:   `[{"canonical_question":"Q1","answer_en":"A1","questions":["V"]},{"canonical_question":"Q2","answer_en":"A2"}]`,
			format: faq.FormatJSON,
			want:   2,
		},
		{
			name: "jsonc with comments and trailing comma",
			data: `[
				// enrolment
				{"canonical_question": "Q1", "answer_en": "A1",},
			]`,
			format: faq.FormatJSONC,
			want:   1,
		},
		{
			name: "yaml",
			data: `
- canonical_question: Q1
  answer_en: A1
  questions: [V1, V2]
`,
			format: faq.FormatYAML,
			want:   1,
		},
		{name: "object instead of array", data: `{"canonical_question":"Q"}`, format: faq.FormatJSON, wantErr: true},
		{name: "malformed", data: `[{"canonical_question":`, format: faq.FormatJSON, wantErr: true},
		{name: "empty array", data: `[]`, format: faq.FormatJSON, wantErr: true},
		{name: "blank", data: "  \n", format: faq.FormatYAML, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := faq.ParseBulk([]byte(tt.data), tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, client.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
			assert.Equal(t, "Q1", items[0].CanonicalQuestion)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, faq.FormatYAML, faq.DetectFormat("faqs.YML"))
	assert.Equal(t, faq.FormatYAML, faq.DetectFormat("faqs.yaml"))
	assert.Equal(t, faq.FormatJSONC, faq.DetectFormat("faqs.jsonc"))
	assert.Equal(t, faq.FormatJSON, faq.DetectFormat("faqs.json"))
	assert.Equal(t, faq.FormatJSON, faq.DetectFormat("faqs"))
}

func TestBulkUpload(t *testing.T) {
	backend, c := newFAQBackend(t)
	editor := faq.NewEditor(c, nil)

	_, err := editor.BulkUpload(context.Background(), nil)
	assert.True(t, client.IsValidation(err))
	assert.Zero(t, backend.calls)

	items, err := faq.ParseBulk([]byte(`[{"canonical_question":"Q","answer_en":"A"}]`), faq.FormatJSON)
	require.NoError(t, err)
	result, err := editor.BulkUpload(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
}
