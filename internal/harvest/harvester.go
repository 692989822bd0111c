// Package harvest walks a section's pages until exhaustion. One unit is one
// (round, tier); its pages are fetched strictly in order because every stop
// condition depends on what the previous page contained. Independent units
// run on a bounded worker pool.
package harvest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/locate"
)

// StopReason records why a unit stopped paging. Ceiling stops are safety
// guards and are logged distinctly from normal completion.
type StopReason string

const (
	StopSectionNotFound StopReason = "section_not_found"
	StopNoRows          StopReason = "no_rows"
	StopRepeatedPage    StopReason = "repeated_page"
	StopRecordLimit     StopReason = "record_limit"
	StopPageLimit       StopReason = "page_limit"
	StopBudgetExceeded  StopReason = "budget_exceeded"
	StopFetchFailed     StopReason = "fetch_failed"
)

// guard reports whether the reason is a tripped safety ceiling rather than a
// natural end of data.
func (r StopReason) guard() bool {
	return r == StopRecordLimit || r == StopPageLimit || r == StopBudgetExceeded
}

// Unit is one (round, tier) harvest.
type Unit struct {
	Round draw.Round
	Tier  draw.Tier
}

// ID names the unit in logs, events, and failure records.
func (u Unit) ID() string {
	return draw.UnitID(u.Round, u.Tier)
}

// UnitResult is the outcome of one unit: its deduplicated records, how many
// pages were walked, why paging stopped, and the error when the unit failed.
// A failed unit still carries the records collected before the failure.
type UnitResult struct {
	Unit    Unit
	Records []draw.Record
	Pages   int
	Stop    StopReason
	Err     error
}

// PageFetcher returns the normalized records found on one page of a section.
// A page whose section cannot be located returns locate.ErrSectionNotFound.
type PageFetcher interface {
	Page(ctx context.Context, round draw.Round, tier draw.Tier, page int) ([]draw.Record, error)
}

// Options bound one harvester. Zero values select the defaults.
type Options struct {
	// PageLimit caps pages per unit.
	PageLimit int
	// TierPageLimits overrides PageLimit per tier; tiers the upstream
	// publishes on a single page set 1.
	TierPageLimits map[draw.Tier]int
	// RecordLimit caps records per unit.
	RecordLimit int
	// Delay is the pacing pause between page fetches.
	Delay time.Duration
	// Deadline is the run's wall-clock budget; the zero value disables it.
	Deadline time.Time
}

const (
	defaultPageLimit   = 50
	defaultRecordLimit = 2000
)

// Harvester runs the page state machine for one unit at a time. It is
// stateless across units and safe for concurrent use by pool workers.
type Harvester struct {
	pages  PageFetcher
	opts   Options
	sleep  func(ctx context.Context, d time.Duration)
	now    func() time.Time
	logger *zap.Logger
}

// New builds a Harvester over the given page source.
func New(pages PageFetcher, opts Options, logger *zap.Logger) *Harvester {
	if opts.PageLimit <= 0 {
		opts.PageLimit = defaultPageLimit
	}
	if opts.RecordLimit <= 0 {
		opts.RecordLimit = defaultRecordLimit
	}
	return &Harvester{
		pages:  pages,
		opts:   opts,
		sleep:  sleepCtx,
		now:    time.Now,
		logger: logger,
	}
}

// Harvest walks the unit's pages until a stop condition fires and returns
// the deduplicated record set. Stop conditions are evaluated in a fixed
// order: section not found, zero rows, repeated page, record ceiling, page
// ceiling.
func (h *Harvester) Harvest(ctx context.Context, unit Unit) UnitResult {
	res := UnitResult{Unit: unit}
	seen := make(map[draw.Key]struct{})

	for page := 1; ; page++ {
		if !h.opts.Deadline.IsZero() && h.now().After(h.opts.Deadline) {
			res.Stop = StopBudgetExceeded
			break
		}
		if err := ctx.Err(); err != nil {
			res.Stop = StopBudgetExceeded
			res.Err = err
			break
		}

		rows, err := h.pages.Page(ctx, unit.Round, unit.Tier, page)
		res.Pages = page
		if errors.Is(err, locate.ErrSectionNotFound) {
			res.Stop = StopSectionNotFound
			break
		}
		if err != nil {
			res.Stop = StopFetchFailed
			res.Err = err
			break
		}
		if len(rows) == 0 {
			res.Stop = StopNoRows
			break
		}

		fresh := 0
		for _, rec := range rows {
			key := rec.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res.Records = append(res.Records, rec)
			fresh++
			if len(res.Records) >= h.opts.RecordLimit {
				break
			}
		}
		switch {
		case fresh == 0:
			// The source served a page we have already seen, which is what
			// an upstream that ignores the page parameter looks like.
			res.Stop = StopRepeatedPage
		case len(res.Records) >= h.opts.RecordLimit:
			res.Stop = StopRecordLimit
		case page >= h.pageLimit(unit.Tier):
			res.Stop = StopPageLimit
		}
		if res.Stop != "" {
			break
		}

		if h.opts.Delay > 0 {
			h.sleep(ctx, h.opts.Delay)
		}
	}

	h.logResult(res)
	return res
}

// pageLimit resolves the page ceiling for a tier.
func (h *Harvester) pageLimit(tier draw.Tier) int {
	if limit, ok := h.opts.TierPageLimits[tier]; ok && limit > 0 {
		return limit
	}
	return h.opts.PageLimit
}

func (h *Harvester) logResult(res UnitResult) {
	fields := []zap.Field{
		zap.String("unit", res.Unit.ID()),
		zap.Int("pages", res.Pages),
		zap.Int("records", len(res.Records)),
		zap.String("stop", string(res.Stop)),
	}
	switch {
	case res.Err != nil:
		h.logger.Warn("unit failed", append(fields, zap.Error(res.Err))...)
	case res.Stop.guard():
		h.logger.Warn("unit stopped by safety ceiling", fields...)
	default:
		h.logger.Debug("unit complete", fields...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
