package rounds

import (
	"context"
	"fmt"

	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/fetch"
	"github.com/jwseok/lotto645-harvester/internal/source"
)

// PageHintResolver reads the advertised round off the result page served
// without a round parameter. It only seeds the probe search; the number it
// extracts is whatever the publisher's markup claims, not a verified round.
type PageHintResolver struct {
	fetcher   fetch.Fetcher
	endpoints source.Endpoints
}

// NewPageHintResolver builds the page-derived hint strategy.
func NewPageHintResolver(fetcher fetch.Fetcher, endpoints source.Endpoints) *PageHintResolver {
	return &PageHintResolver{fetcher: fetcher, endpoints: endpoints}
}

// Resolve fetches the latest result page and extracts the round hint.
func (r *PageHintResolver) Resolve(ctx context.Context) (Resolution, error) {
	hosts := r.endpoints.Hosts()
	req := fetch.Request{URL: r.endpoints.LatestResults(hosts[0])}
	if len(hosts) > 1 {
		req.AltURL = r.endpoints.LatestResults(hosts[1])
	}
	doc, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetch latest result page: %w", err)
	}
	round, err := source.ExtractRoundHint(doc.Body)
	if err != nil {
		return Resolution{}, fmt.Errorf("extract round hint: %w", err)
	}
	return Resolution{Round: draw.Round(round), Strategy: StrategyPageHint}, nil
}
