package faq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a bulk upload file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// DetectFormat picks a format from a file name. Unknown extensions are JSON.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonc":
		return FormatJSONC
	default:
		return FormatJSON
	}
}

// ParseBulk decodes a list of FAQs. The document must be a list at the top
// level. Malformed input is a ValidationError; per-item checks are left to
// the backend, which skips and reports bad items.
func ParseBulk(data []byte, format Format) ([]client.FAQInput, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, client.NewValidationError("file", "bulk upload file is empty")
	}

	var items []client.FAQInput
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, client.NewValidationError("file", fmt.Sprintf("invalid YAML: %v", err))
		}
	case FormatJSON, FormatJSONC:
		// Plain JSON passes through ToJSON unchanged.
		if err := json.Unmarshal(jsonc.ToJSON(data), &items); err != nil {
			return nil, client.NewValidationError("file", fmt.Sprintf("invalid JSON: expected an array of FAQs: %v", err))
		}
	default:
		return nil, client.NewValidationError("format", fmt.Sprintf("unsupported format %q", format))
	}

	if len(items) == 0 {
		return nil, client.NewValidationError("file", "bulk upload contains no FAQs")
	}
	return items, nil
}
