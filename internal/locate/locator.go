// Package locate identifies the data table for a logical tier inside one
// fetched page. Heuristics live here once, behind an ordered strategy chain;
// call sites never re-derive label searches or header scoring.
package locate

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// ErrSectionNotFound reports that no candidate table matched the requested
// tier. It is a normal outcome for pages past the end of a listing and must
// never be treated as fatal.
var ErrSectionNotFound = errors.New("section not found")

// Table is the resolved section: the rows of exactly one tier.
type Table struct {
	Tier    draw.Tier
	Headers []string
	Rows    [][]string
}

// Strategy is one way of picking a candidate for a profile.
type Strategy interface {
	Name() string
	Find(d *Document, p Profile) (*Candidate, bool)
}

// Locator resolves (document, profile) to at most one table by running its
// strategies in order: label-anchored first, heuristic scoring as fallback.
type Locator struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewLocator builds the default strategy chain.
func NewLocator(logger *zap.Logger) *Locator {
	return &Locator{
		strategies: []Strategy{labelAnchored{}, scoreAnchored{}},
		logger:     logger,
	}
}

// Locate returns the single table for the profile's tier, with rows trimmed
// at the first row announcing another tier. The winning candidate is claimed
// for the tier so siblings on the same page cannot resolve to it.
func (l *Locator) Locate(d *Document, p Profile) (*Table, error) {
	for _, s := range l.strategies {
		cand, ok := s.Find(d, p)
		if !ok {
			continue
		}
		d.claim(cand.index, p.Tier)
		l.logger.Debug("section located",
			zap.String("tier", string(p.Tier)),
			zap.String("strategy", s.Name()),
			zap.Int("rows", len(cand.Rows)))
		return &Table{
			Tier:    p.Tier,
			Headers: cand.Headers,
			Rows:    trimAtStopLabel(cand.Rows, p.StopLabels),
		}, nil
	}
	return nil, fmt.Errorf("tier %s: %w", p.Tier, ErrSectionNotFound)
}

// trimAtStopLabel cuts the row stream at the first row that announces the
// next tier, so stacked-tier tables never leak rows across sections.
func trimAtStopLabel(rows [][]string, stops []string) [][]string {
	if len(stops) == 0 {
		return rows
	}
	for i, row := range rows {
		joined := strings.Join(row, " ")
		for _, stop := range stops {
			if strings.Contains(joined, stop) {
				return rows[:i]
			}
		}
	}
	return rows
}

// labelAnchored picks the table nearest a text label uniquely naming the
// tier. Among several labeled matches the one with the most data rows wins.
type labelAnchored struct{}

func (labelAnchored) Name() string { return "label" }

func (labelAnchored) Find(d *Document, p Profile) (*Candidate, bool) {
	if p.Label == "" {
		return nil, false
	}
	var best *Candidate
	for _, cand := range d.candidates {
		if !d.available(cand.index, p.Tier) || !anchoredBy(cand, p.Label) {
			continue
		}
		if best == nil || len(cand.Rows) > len(best.Rows) {
			best = cand
		}
	}
	return best, best != nil
}

func anchoredBy(cand *Candidate, label string) bool {
	for _, anchor := range cand.anchors {
		if strings.Contains(anchor, label) {
			return true
		}
	}
	return false
}

// scoreAnchored ranks candidates by header-keyword hits, row count, and
// column-count class, and picks the best scorer whose structure matches the
// tier's expected shape.
type scoreAnchored struct{}

func (scoreAnchored) Name() string { return "score" }

// Scoring weights. Header keywords dominate; row count only breaks ties
// between structurally plausible tables.
const (
	nameKeywordScore    = 30
	addressKeywordScore = 30
	tierKeywordScore    = 15
	columnSpanScore     = 20
	rowCountScoreCap    = 20
)

func (scoreAnchored) Find(d *Document, p Profile) (*Candidate, bool) {
	var best *Candidate
	bestScore := 0
	for _, cand := range d.candidates {
		if !d.available(cand.index, p.Tier) {
			continue
		}
		if len(cand.Headers) < p.MinColumns || len(cand.Rows) == 0 {
			continue
		}
		score := scoreCandidate(cand, p)
		// A data table must at least name its store and address columns.
		if score < nameKeywordScore+addressKeywordScore {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && len(cand.Rows) > len(best.Rows)) {
			best = cand
			bestScore = score
		}
	}
	return best, best != nil
}

func scoreCandidate(cand *Candidate, p Profile) int {
	header := strings.Join(cand.Headers, " ")
	score := 0
	if containsAny(header, p.NameKeywords) {
		score += nameKeywordScore
	}
	if containsAny(header, p.AddressKeywords) {
		score += addressKeywordScore
	}
	if containsAny(header, p.TierKeywords) {
		score += tierKeywordScore
	}
	for _, span := range p.ColumnSpans {
		if len(cand.Headers) == span {
			score += columnSpanScore
			break
		}
	}
	if rows := len(cand.Rows); rows < rowCountScoreCap {
		score += rows
	} else {
		score += rowCountScoreCap
	}
	return score
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
