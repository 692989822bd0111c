// Package aggregate folds structured records into per-round and per-region
// summaries and assembles the run's output snapshot. Folding is incremental
// and idempotent per dedup key; one writer merges worker results after the
// pool drains.
package aggregate

import (
	"sort"
	"time"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// TierBreakdown counts one tier's records inside one round. Regions holds
// only real administrative codes; online and unclassified rows are tallied
// separately so the three groups always sum to Total.
type TierBreakdown struct {
	Total        int            `json:"total"`
	Regions      map[string]int `json:"regions"`
	Online       int            `json:"online"`
	Unclassified int            `json:"unclassified"`
}

// RoundSummary is the aggregate view of one round.
type RoundSummary struct {
	Round  draw.Round                   `json:"round"`
	Tiers  map[draw.Tier]*TierBreakdown `json:"tiers"`
	Result *draw.Result                 `json:"result,omitempty"`
	Prizes []draw.PrizeTier             `json:"prizes,omitempty"`
}

// Meta stamps a snapshot with the run's identity and outcome. Failures ride
// along instead of collapsing the run into a binary success signal.
type Meta struct {
	RunID       string         `json:"runId"`
	LatestRound draw.Round     `json:"latestRound"`
	Window      []draw.Round   `json:"window"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Processed   int            `json:"processedUnits"`
	Failures    []draw.Failure `json:"failures"`
}

// Snapshot is the run's in-memory output. Durable writing and pruning stay
// with the storage layer.
type Snapshot struct {
	Meta      Meta                         `json:"meta"`
	ByRound   map[draw.Round][]draw.Record `json:"byRound"`
	ByRegion  map[string][]draw.Record     `json:"byRegion"`
	Summaries map[draw.Round]*RoundSummary `json:"summaries"`
	Heatmap   *Heatmap                     `json:"heatmap,omitempty"`
}

// Aggregator folds records as they arrive. Not safe for concurrent use;
// merge worker results through a single writer.
type Aggregator struct {
	onlineCode       string
	unclassifiedCode string

	seen      map[draw.Key]struct{}
	byRound   map[draw.Round][]draw.Record
	byRegion  map[string][]draw.Record
	summaries map[draw.Round]*RoundSummary
}

// New builds an empty Aggregator. The special codes tell it which region
// values count as online and unclassified subtotals.
func New(onlineCode, unclassifiedCode string) *Aggregator {
	return &Aggregator{
		onlineCode:       onlineCode,
		unclassifiedCode: unclassifiedCode,
		seen:             make(map[draw.Key]struct{}),
		byRound:          make(map[draw.Round][]draw.Record),
		byRegion:         make(map[string][]draw.Record),
		summaries:        make(map[draw.Round]*RoundSummary),
	}
}

// Fold counts one record, returning false when its key was already folded.
// Folding the same record twice is a no-op, which keeps the per-tier totals
// equal to the distinct-record counts.
func (a *Aggregator) Fold(rec draw.Record) bool {
	key := rec.Key()
	if _, dup := a.seen[key]; dup {
		return false
	}
	a.seen[key] = struct{}{}

	a.byRound[rec.Round] = append(a.byRound[rec.Round], rec)
	a.byRegion[rec.Region] = append(a.byRegion[rec.Region], rec)

	tb := a.breakdown(rec.Round, rec.Tier)
	tb.Total++
	switch rec.Region {
	case a.onlineCode:
		tb.Online++
	case a.unclassifiedCode, "":
		tb.Unclassified++
	default:
		tb.Regions[rec.Region]++
	}
	return true
}

// FoldAll folds a batch and returns how many records were new.
func (a *Aggregator) FoldAll(recs []draw.Record) int {
	fresh := 0
	for _, rec := range recs {
		if a.Fold(rec) {
			fresh++
		}
	}
	return fresh
}

// FoldResult attaches a decoded draw to its round's summary.
func (a *Aggregator) FoldResult(res draw.Result) {
	summary := a.summary(res.Round)
	cp := res
	summary.Result = &cp
}

// FoldPrizes attaches a round's prize breakdown, ordered by rank.
func (a *Aggregator) FoldPrizes(round draw.Round, prizes []draw.PrizeTier) {
	if len(prizes) == 0 {
		return
	}
	ordered := append([]draw.PrizeTier(nil), prizes...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
	a.summary(round).Prizes = ordered
}

// Summary returns the folded view of one round, or nil when nothing was
// folded for it.
func (a *Aggregator) Summary(round draw.Round) *RoundSummary {
	return a.summaries[round]
}

// Snapshot assembles the output. Records inside each region are sorted by
// round descending; records inside each round keep harvest order.
func (a *Aggregator) Snapshot(meta Meta, heatmap *Heatmap) *Snapshot {
	byRegion := make(map[string][]draw.Record, len(a.byRegion))
	for region, recs := range a.byRegion {
		ordered := append([]draw.Record(nil), recs...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Round > ordered[j].Round })
		byRegion[region] = ordered
	}
	if meta.Failures == nil {
		meta.Failures = []draw.Failure{}
	}
	return &Snapshot{
		Meta:      meta,
		ByRound:   a.byRound,
		ByRegion:  byRegion,
		Summaries: a.summaries,
		Heatmap:   heatmap,
	}
}

func (a *Aggregator) summary(round draw.Round) *RoundSummary {
	s, ok := a.summaries[round]
	if !ok {
		s = &RoundSummary{Round: round, Tiers: make(map[draw.Tier]*TierBreakdown)}
		a.summaries[round] = s
	}
	return s
}

func (a *Aggregator) breakdown(round draw.Round, tier draw.Tier) *TierBreakdown {
	s := a.summary(round)
	tb, ok := s.Tiers[tier]
	if !ok {
		tb = &TierBreakdown{Regions: make(map[string]int)}
		s.Tiers[tier] = tb
	}
	return tb
}
