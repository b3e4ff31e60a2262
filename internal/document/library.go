package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
)

// sniffLen is how much of a file is read for content detection.
const sniffLen = 3072

// Gateway is the slice of the backend client used for documents.
type Gateway interface {
	ListDocuments(ctx context.Context) ([]client.Document, error)
	UploadDocument(ctx context.Context, up client.Upload) (*client.UploadResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

// ProgressFunc receives the number of bytes sent so far and the file size.
type ProgressFunc func(sent, total int64)

// Library caches the document list.
type Library struct {
	gateway  Gateway
	maxBytes int64
	logger   *slog.Logger

	mu   sync.Mutex
	docs []client.Document
}

// NewLibrary creates a library enforcing maxBytes on uploads.
func NewLibrary(gateway Gateway, maxBytes int64, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Library{gateway: gateway, maxBytes: maxBytes, logger: logger, docs: []client.Document{}}
}

// Reload replaces the cache with the server's list.
func (l *Library) Reload(ctx context.Context) error {
	docs, err := l.gateway.ListDocuments(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = slices.Clone(docs)
	if l.docs == nil {
		l.docs = []client.Document{}
	}
	return nil
}

// List returns the cached documents.
func (l *Library) List() []client.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.docs)
}

// Upload checks and uploads the file at path. Type, size and content are
// checked before any request; the file is streamed, never held in memory.
func (l *Library) Upload(ctx context.Context, path string, progress ProgressFunc) (*client.UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return nil, client.NewValidationError("file", fmt.Sprintf("%s is a directory", path))
	}
	name := filepath.Base(path)
	if err := Validate(name, info.Size(), l.maxBytes); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType, err := CheckContent(name, head)
	if err != nil {
		return nil, err
	}

	var body io.Reader = io.MultiReader(bytes.NewReader(head), f)
	if progress != nil {
		body = &progressReader{r: body, total: info.Size(), fn: progress}
	}

	result, err := l.gateway.UploadDocument(ctx, client.Upload{
		Filename:    name,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("document uploaded", "document_id", result.ID, "chunks", result.Chunks, "bytes", info.Size())
	return result, nil
}

// Delete removes a document and drops it from the cache.
func (l *Library) Delete(ctx context.Context, id string) error {
	if err := l.gateway.DeleteDocument(ctx, id); err != nil {
		return err
	}
	l.mu.Lock()
	l.docs = slices.DeleteFunc(l.docs, func(d client.Document) bool { return d.ID == id })
	l.mu.Unlock()
	return nil
}

type progressReader struct {
	r     io.Reader
	total int64
	sent  atomic.Int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.fn(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
