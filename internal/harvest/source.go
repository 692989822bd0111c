package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/fetch"
	"github.com/jwseok/lotto645-harvester/internal/locate"
	"github.com/jwseok/lotto645-harvester/internal/normalize"
	"github.com/jwseok/lotto645-harvester/internal/progress"
	"github.com/jwseok/lotto645-harvester/internal/source"
)

// SectionSource implements PageFetcher against the live upstream: fetch the
// store listing page, locate the tier's table, normalize its rows. One
// instance is bound to one run so its page events carry the run ID.
type SectionSource struct {
	fetcher    fetch.Fetcher
	endpoints  source.Endpoints
	locator    *locate.Locator
	normalizer *normalize.Normalizer
	profiles   map[draw.Tier]locate.Profile
	emitter    progress.Emitter
	runID      string
}

// NewSectionSource wires the fetch, locate, and normalize layers into one
// page source. emitter may be nil.
func NewSectionSource(
	fetcher fetch.Fetcher,
	endpoints source.Endpoints,
	locator *locate.Locator,
	normalizer *normalize.Normalizer,
	profiles map[draw.Tier]locate.Profile,
	emitter progress.Emitter,
	runID string,
) *SectionSource {
	return &SectionSource{
		fetcher:    fetcher,
		endpoints:  endpoints,
		locator:    locator,
		normalizer: normalizer,
		profiles:   profiles,
		emitter:    emitter,
		runID:      runID,
	}
}

// Page fetches and extracts one page of one section.
func (s *SectionSource) Page(ctx context.Context, round draw.Round, tier draw.Tier, page int) ([]draw.Record, error) {
	profile, ok := s.profiles[tier]
	if !ok {
		return nil, fmt.Errorf("tier %s: %w", tier, locate.ErrSectionNotFound)
	}

	hosts := s.endpoints.Hosts()
	req := fetch.Request{URL: s.endpoints.Stores(hosts[0], int(round), page)}
	if len(hosts) > 1 {
		req.AltURL = s.endpoints.Stores(hosts[1], int(round), page)
	}
	doc, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", draw.UnitID(round, tier), page, err)
	}

	parsed, err := locate.Parse(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s page %d: %w", draw.UnitID(round, tier), page, err)
	}
	table, err := s.locator.Locate(parsed, profile)
	if err != nil {
		return nil, err
	}

	records := make([]draw.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		if rec, ok := s.normalizer.Normalize(round, tier, row); ok {
			records = append(records, rec)
		}
	}
	s.emitPage(round, tier, page, doc, len(records))
	return records, nil
}

func (s *SectionSource) emitPage(round draw.Round, tier draw.Tier, page int, doc *fetch.Document, records int) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(progress.Event{
		RunID:       s.runID,
		TS:          time.Now().UTC(),
		Stage:       progress.StagePageDone,
		Unit:        draw.UnitID(round, tier),
		Round:       int(round),
		Tier:        string(tier),
		Page:        page,
		Records:     records,
		Bytes:       int64(doc.Bytes),
		StatusClass: progress.ClassifyStatus(doc.Status),
		Dur:         doc.Duration,
	})
}
