// Package faq edits the FAQ knowledge base: form validation, bulk upload
// parsing and a cached editor over the admin FAQ endpoints.
package faq

import (
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
)

// Form is the editable shape of an FAQ. Variants never contain the
// canonical question; the backend adds it to the stored set itself.
type Form struct {
	CanonicalQuestion string
	Answer            string
	Variants          []string
}

// FormFrom prepares an existing FAQ for editing.
func FormFrom(f client.FAQ) Form {
	return Form{
		CanonicalQuestion: f.CanonicalQuestion,
		Answer:            f.AnswerEN,
		Variants:          f.Variants(),
	}
}

// Validate checks the required fields.
func (f Form) Validate() error {
	if strings.TrimSpace(f.CanonicalQuestion) == "" {
		return client.NewValidationError("canonical_question", "canonical question is required")
	}
	if strings.TrimSpace(f.Answer) == "" {
		return client.NewValidationError("answer_en", "answer is required")
	}
	return nil
}

// Input returns the create payload with fields trimmed and variants cleaned.
func (f Form) Input() client.FAQInput {
	canonical := strings.TrimSpace(f.CanonicalQuestion)
	return client.FAQInput{
		CanonicalQuestion: canonical,
		AnswerEN:          strings.TrimSpace(f.Answer),
		Questions:         cleanVariants(canonical, f.Variants),
	}
}

// Update returns a full-replace update payload.
func (f Form) Update() client.FAQUpdate {
	in := f.Input()
	return client.FAQUpdate{
		CanonicalQuestion: &in.CanonicalQuestion,
		AnswerEN:          &in.AnswerEN,
		Questions:         in.Questions,
	}
}

// cleanVariants trims, drops blanks and duplicates, and removes the
// canonical question. The result is never nil so an update always
// replaces the stored variants.
func cleanVariants(canonical string, variants []string) []string {
	seen := map[string]bool{canonical: true}
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
