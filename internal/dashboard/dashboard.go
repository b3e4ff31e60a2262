// Package dashboard computes the admin overview counts.
package dashboard

import (
	"context"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/escalation"
	"golang.org/x/sync/errgroup"
)

// Gateway is the slice of the backend client the dashboard reads.
type Gateway interface {
	ListFAQs(ctx context.Context) ([]client.FAQ, error)
	ListEscalations(ctx context.Context, status string) ([]client.Escalation, error)
	ListDocuments(ctx context.Context) ([]client.Document, error)
}

// Stats are the overview totals.
type Stats struct {
	FAQs            int `json:"faqs"`
	OpenEscalations int `json:"open_escalations"`
	Documents       int `json:"documents"`
}

// Load fetches the three lists in parallel. If any request fails the
// result is all zeros together with the first error.
func Load(ctx context.Context, gw Gateway) (Stats, error) {
	var (
		faqs        []client.FAQ
		escalations []client.Escalation
		docs        []client.Document
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		faqs, err = gw.ListFAQs(ctx)
		return err
	})
	g.Go(func() (err error) {
		escalations, err = gw.ListEscalations(ctx, "")
		return err
	})
	g.Go(func() (err error) {
		docs, err = gw.ListDocuments(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{FAQs: len(faqs), Documents: len(docs)}
	for _, e := range escalations {
		if escalation.Status(e.Status) == client.StatusOpen {
			stats.OpenEscalations++
		}
	}
	return stats, nil
}
