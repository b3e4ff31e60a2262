// Package document manages the knowledge-base documents: local upload
// checks, streaming upload with progress, listing and deletion.
package document

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/raphaelgruber/helpdesk-go/internal/client"
)

// AllowedExtensions are the file types the backend can ingest.
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// sniffable maps an extension to the detected types (or parents of them)
// that are consistent with it.
var sniffable = map[string][]string{
	".pdf":  {"application/pdf"},
	".txt":  {"text/plain"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".doc":  {"application/msword", "application/x-ole-storage"},
}

// Validate checks a file's name and size before anything is read or sent.
func Validate(name string, size, maxBytes int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(AllowedExtensions, ext) {
		return client.NewValidationError("file", fmt.Sprintf("unsupported file type %q (allowed: PDF, DOC, DOCX, TXT)", ext))
	}
	if size == 0 {
		return client.NewValidationError("file", "file is empty")
	}
	if size > maxBytes {
		return client.NewValidationError("file", fmt.Sprintf("file size %s exceeds %s limit", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(maxBytes))))
	}
	return nil
}

// CheckContent verifies that sniffed content matches the file extension and
// returns the MIME type to send.
func CheckContent(name string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	detected := mimetype.Detect(head)

	for m := detected; m != nil; m = m.Parent() {
		for _, want := range sniffable[ext] {
			if m.Is(want) {
				return detected.String(), nil
			}
		}
	}
	return "", client.NewValidationError("file", fmt.Sprintf("%s content looks like %s", ext, detected.String()))
}

// FormatSize renders a document size for display.
func FormatSize(size *int64) string {
	if size == nil || *size < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(*size))
}
