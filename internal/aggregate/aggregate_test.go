package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

func newTestAggregator() *Aggregator {
	return New("온라인", "기타")
}

func rec(round draw.Round, tier draw.Tier, label, region, address string) draw.Record {
	return draw.Record{
		Round:   round,
		Tier:    tier,
		Label:   label,
		Address: address,
		Region:  region,
	}
}

func TestFoldCountsPerRegionPerTier(t *testing.T) {
	t.Parallel()

	a := newTestAggregator()
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "가", "서울", "서울 1")))
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "나", "서울", "서울 2")))
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "다", "부산", "부산 1")))
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "라", "온라인", "dhlottery.co.kr")))
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "마", "기타", "어딘가")))
	require.True(t, a.Fold(rec(1300, draw.TierSecond, "바", "서울", "서울 3")))

	first := a.Summary(1300).Tiers[draw.TierFirst]
	require.Equal(t, 5, first.Total)
	require.Equal(t, 2, first.Regions["서울"])
	require.Equal(t, 1, first.Regions["부산"])
	require.Equal(t, 1, first.Online)
	require.Equal(t, 1, first.Unclassified)

	second := a.Summary(1300).Tiers[draw.TierSecond]
	require.Equal(t, 1, second.Total)
}

func TestFoldIsIdempotentPerKey(t *testing.T) {
	t.Parallel()

	a := newTestAggregator()
	r := rec(1300, draw.TierFirst, "가", "서울", "서울 1")
	require.True(t, a.Fold(r))
	require.False(t, a.Fold(r))
	require.Equal(t, 1, a.Summary(1300).Tiers[draw.TierFirst].Total)
	require.Len(t, a.byRound[1300], 1)
}

func TestPerTierTotalEqualsDistinctRecordCount(t *testing.T) {
	t.Parallel()

	a := newTestAggregator()
	records := []draw.Record{
		rec(1300, draw.TierFirst, "가", "서울", "서울 1"),
		rec(1300, draw.TierFirst, "나", "경기", "경기 1"),
		rec(1300, draw.TierFirst, "나", "경기", "경기 1"), // duplicate
		rec(1300, draw.TierFirst, "다", "온라인", "인터넷"),
		rec(1300, draw.TierFirst, "라", "기타", "모름"),
	}
	fresh := a.FoldAll(records)
	require.Equal(t, 4, fresh)

	tb := a.Summary(1300).Tiers[draw.TierFirst]
	regionSum := 0
	for _, n := range tb.Regions {
		regionSum += n
	}
	require.Equal(t, tb.Total, regionSum+tb.Online+tb.Unclassified)
	require.Equal(t, 4, tb.Total)
}

func TestSnapshotSortsRegionsByRoundDescending(t *testing.T) {
	t.Parallel()

	a := newTestAggregator()
	require.True(t, a.Fold(rec(1298, draw.TierFirst, "가", "서울", "서울 1")))
	require.True(t, a.Fold(rec(1300, draw.TierFirst, "나", "서울", "서울 2")))
	require.True(t, a.Fold(rec(1299, draw.TierFirst, "다", "서울", "서울 3")))

	snap := a.Snapshot(Meta{
		RunID:       "run-1",
		LatestRound: 1300,
		Window:      []draw.Round{1298, 1299, 1300},
		GeneratedAt: time.Now().UTC(),
		Processed:   3,
	}, nil)

	seoul := snap.ByRegion["서울"]
	require.Len(t, seoul, 3)
	require.Equal(t, draw.Round(1300), seoul[0].Round)
	require.Equal(t, draw.Round(1299), seoul[1].Round)
	require.Equal(t, draw.Round(1298), seoul[2].Round)
	require.NotNil(t, snap.Meta.Failures, "failures list is always present")
}

func TestFoldResultAndPrizes(t *testing.T) {
	t.Parallel()

	a := newTestAggregator()
	a.FoldResult(draw.Result{Round: 1300, Numbers: [6]int{1, 2, 3, 4, 5, 6}, Bonus: 7})
	a.FoldPrizes(1300, []draw.PrizeTier{
		{Rank: 3, Winners: 100},
		{Rank: 1, Winners: 10},
	})

	summary := a.Summary(1300)
	require.NotNil(t, summary.Result)
	require.Equal(t, 7, summary.Result.Bonus)
	require.Len(t, summary.Prizes, 2)
	require.Equal(t, 1, summary.Prizes[0].Rank, "prizes ordered by rank")
}

func TestBuildHeatmap(t *testing.T) {
	t.Parallel()

	results := []draw.Result{
		{Round: 1299, Numbers: [6]int{1, 2, 3, 4, 5, 6}, Bonus: 7},
		{Round: 1300, Numbers: [6]int{1, 10, 20, 30, 40, 45}, Bonus: 7},
	}
	h := BuildHeatmap(results, 40)
	require.NotNil(t, h)
	require.Equal(t, 2, h.Counts[0], "number 1 drawn twice")
	require.Equal(t, 1, h.Counts[44], "number 45 drawn once")
	require.Equal(t, 2, h.Bonus[6])

	total := 0
	for _, n := range h.Counts {
		total += n
	}
	require.Equal(t, 6*len(results), total, "counts sum to six per folded round")

	require.Nil(t, BuildHeatmap(nil, 40))
}

func TestBuildHeatmapIgnoresOutOfRangeNumbers(t *testing.T) {
	t.Parallel()

	h := BuildHeatmap([]draw.Result{{Round: 1, Numbers: [6]int{0, 46, 99, 1, 2, 3}, Bonus: 0}}, 1)
	total := 0
	for _, n := range h.Counts {
		total += n
	}
	require.Equal(t, 3, total)
}
