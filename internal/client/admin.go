package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// FAQ OPERATIONS
// =============================================================================

// ListFAQs returns every FAQ with its question variants, newest first.
func (c *Client) ListFAQs(ctx context.Context) ([]FAQ, error) {
	var faqs []FAQ
	if err := c.doJSON(ctx, "list_faqs", http.MethodGet, "/admin/faqs/", nil, &faqs); err != nil {
		return nil, err
	}
	return faqs, nil
}

// CreateFAQ creates an FAQ and returns it with its stored questions.
func (c *Client) CreateFAQ(ctx context.Context, input FAQInput) (*FAQ, error) {
	var faq FAQ
	if err := c.doJSON(ctx, "create_faq", http.MethodPost, "/admin/faqs/", input, &faq); err != nil {
		return nil, err
	}
	return &faq, nil
}

// UpdateFAQ edits an FAQ.
func (c *Client) UpdateFAQ(ctx context.Context, id int64, input FAQUpdate) (*FAQ, error) {
	var faq FAQ
	if err := c.doJSON(ctx, "update_faq", http.MethodPut, faqPath(id), input, &faq); err != nil {
		return nil, err
	}
	return &faq, nil
}

// DeleteFAQ deletes an FAQ and all its question variants.
func (c *Client) DeleteFAQ(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_faq", http.MethodDelete, faqPath(id), nil, nil)
}

// AddFAQQuestion appends one question variant to an FAQ. The backend
// answers 409 if the variant already exists.
func (c *Client) AddFAQQuestion(ctx context.Context, id int64, questionText string) (*AddedQuestion, error) {
	in := struct {
		QuestionText string `json:"question_text"`
	}{QuestionText: questionText}

	var result AddedQuestion
	if err := c.doJSON(ctx, "add_faq_question", http.MethodPost, faqPath(id)+"/questions", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkUploadFAQs creates many FAQs in one request. Items that are invalid
// or duplicate a canonical question are skipped and reported.
func (c *Client) BulkUploadFAQs(ctx context.Context, items []FAQInput) (*BulkUploadResult, error) {
	if items == nil {
		items = []FAQInput{}
	}
	var result BulkUploadResult
	if err := c.doJSON(ctx, "bulk_upload_faqs", http.MethodPost, "/admin/faqs/bulk-upload", items, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func faqPath(id int64) string {
	return "/admin/faqs/" + strconv.FormatInt(id, 10)
}

// =============================================================================
// ESCALATION OPERATIONS
// =============================================================================

// ListEscalations returns escalations, newest first. An empty status
// returns all of them.
func (c *Client) ListEscalations(ctx context.Context, status string) ([]Escalation, error) {
	path := "/admin/escalations/"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}

	var escalations []Escalation
	if err := c.doJSON(ctx, "list_escalations", http.MethodGet, path, nil, &escalations); err != nil {
		return nil, err
	}
	return escalations, nil
}

// GetEscalation returns one escalation.
func (c *Client) GetEscalation(ctx context.Context, id int64) (*Escalation, error) {
	var esc Escalation
	if err := c.doJSON(ctx, "get_escalation", http.MethodGet, escalationPath(id), nil, &esc); err != nil {
		return nil, err
	}
	return &esc, nil
}

// ReplyToEscalation answers an escalation, resolving it. The backend also
// posts the answer into the student's chat as an admin message.
// resolvedAt is advisory; the server may use its own clock.
func (c *Client) ReplyToEscalation(ctx context.Context, id int64, question, answer string, resolvedAt time.Time) (*ReplyResult, error) {
	in := struct {
		Question   string    `json:"question"`
		Answer     string    `json:"answer"`
		ResolvedAt Timestamp `json:"resolved_at"`
	}{Question: question, Answer: answer, ResolvedAt: NewTimestamp(resolvedAt)}

	var result ReplyResult
	if err := c.doJSON(ctx, "reply_escalation", http.MethodPost, escalationPath(id)+"/reply", in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PromoteToFAQ turns a resolved escalation into a new FAQ.
func (c *Client) PromoteToFAQ(ctx context.Context, id int64) (*PromoteResult, error) {
	var result PromoteResult
	if err := c.doJSON(ctx, "promote_escalation", http.MethodPost, escalationPath(id)+"/promote/faq", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func escalationPath(id int64) string {
	return "/admin/escalations/" + strconv.FormatInt(id, 10)
}

// =============================================================================
// DOCUMENT OPERATIONS
// =============================================================================

// ListDocuments returns the ingested documents, newest first.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.doJSON(ctx, "list_documents", http.MethodGet, "/admin/documents/", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Upload is a file handed to UploadDocument.
type Upload struct {
	Filename    string
	ContentType string // defaults to application/octet-stream
	Body        io.Reader
}

// UploadDocument streams a file to the backend as multipart/form-data under
// the "file" field. Callers are expected to have validated size and type.
func (c *Client) UploadDocument(ctx context.Context, up Upload) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// writeErr holds a failure reading the local file. It wins over the
	// transport error it causes, which would otherwise look like a
	// connectivity problem.
	writeErr := make(chan error, 1)
	go func() {
		err := writeFilePart(mw, up)
		writeErr <- err
		pw.CloseWithError(err)
	}()
	// Unblocks the writer goroutine if the request ends before the body is drained.
	defer pr.Close()

	var result UploadResult
	cl := call{
		op:          "upload_document",
		method:      http.MethodPost,
		path:        "/admin/documents/upload",
		body:        pr,
		contentType: mw.FormDataContentType(),
	}
	if err := c.do(ctx, cl, &result); err != nil {
		pr.Close()
		if werr := <-writeErr; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			return nil, fmt.Errorf("%s: %w", cl.op, werr)
		}
		return nil, err
	}
	return &result, nil
}

func writeFilePart(mw *multipart.Writer, up Upload) error {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(up.Filename)))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// DeleteDocument deletes a document and its indexed chunks.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, "delete_document", http.MethodDelete, "/admin/documents/"+url.PathEscape(id), nil, nil)
}
