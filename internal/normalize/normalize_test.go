package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

func TestNormalizeFirstTierRow(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	rec, ok := n.Normalize(1300, draw.TierFirst, []string{"1", "행운복권방", "자동", "서울특별시 강남구 테헤란로 1"})
	require.True(t, ok)
	require.Equal(t, draw.Round(1300), rec.Round)
	require.Equal(t, "행운복권방", rec.Label)
	require.Equal(t, "자동", rec.Method)
	require.Equal(t, "서울", rec.Region)
	require.Equal(t, "강남구", rec.SubRegion)
}

func TestNormalizeSecondTierRowHasNoMethod(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	rec, ok := n.Normalize(1300, draw.TierSecond, []string{"7", "대박슈퍼", "경기도 성남시 분당구 3"})
	require.True(t, ok)
	require.Empty(t, rec.Method)
	require.Equal(t, "경기", rec.Region)
	require.Equal(t, "성남시", rec.SubRegion)
}

func TestNormalizeRejections(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	cases := []struct {
		name  string
		tier  draw.Tier
		cells []string
	}{
		{
			name:  "header echoed into body",
			tier:  draw.TierFirst,
			cells: []string{"번호", "상호명", "구분", "소재지"},
		},
		{
			name:  "no results filler",
			tier:  draw.TierFirst,
			cells: []string{"", "조회 결과가 없습니다.", "", ""},
		},
		{
			name:  "too few cells",
			tier:  draw.TierFirst,
			cells: []string{"1", "반쪽상점", "자동"},
		},
		{
			name:  "unknown tier",
			tier:  draw.Tier("third"),
			cells: []string{"1", "상점", "주소"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, ok := n.Normalize(1300, tc.tier, tc.cells)
			require.False(t, ok)
		})
	}
}

func TestNormalizeKeepsRowsWithExtraTrailingCells(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	rec, ok := n.Normalize(1300, draw.TierFirst,
		[]string{"1", "행운복권방", "자동", "부산광역시 해운대구 1", "지도보기", ""})
	require.True(t, ok, "extra trailing cells must never cause rejection")
	require.Equal(t, "부산", rec.Region)
}

func TestRegionAliasLeadingToken(t *testing.T) {
	t.Parallel()

	// The alias table is configuration: an English table resolves English
	// addresses the same way.
	cfg := DefaultConfig()
	cfg.Aliases = map[string]string{"Seoul": "SEOUL"}
	n := New(cfg)

	region, sub := n.Region("Store", "Seoul Gangnam-district 123 street")
	require.Equal(t, "SEOUL", region)
	require.Equal(t, "Gangnam-district", sub)
}

func TestRegionAnyTokenFallback(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	region, sub := n.Region("상점", "제2청사 인근 대전광역시 서구 둔산동")
	require.Equal(t, "대전", region)
	require.Equal(t, "서구", sub)
}

func TestRegionShortCodeAndGluedDistrict(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())

	region, _ := n.Region("상점", "서울 마포구 1")
	require.Equal(t, "서울", region)

	region, _ = n.Region("상점", "경기도성남시 분당구")
	require.Equal(t, "경기", region)
}

func TestRegionUnclassified(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())
	region, sub := n.Region("상점", "어딘가 모를 곳 1번지")
	require.Equal(t, "기타", region)
	require.Empty(t, sub)

	region, _ = n.Region("상점", "")
	require.Equal(t, "기타", region)
}

func TestRegionOnlineMarkerTakesPrecedence(t *testing.T) {
	t.Parallel()

	n := New(DefaultConfig())

	// An incidental administrative token must not outrank the online
	// channel marker.
	region, _ := n.Region("동행복권", "서울특별시 중구 1")
	require.Equal(t, "온라인", region)

	region, _ = n.Region("상점", "www.dhlottery.co.kr")
	require.Equal(t, "온라인", region)

	rec, ok := New(DefaultConfig()).Normalize(1300, draw.TierFirst,
		[]string{"1", "복권통합포털 동행복권", "인터넷", "부산광역시 어딘가"})
	require.True(t, ok)
	require.Equal(t, "온라인", rec.Region)
}

func TestParsePrizeRow(t *testing.T) {
	t.Parallel()

	tier, ok := ParsePrizeRow([]string{"1등", "27,434,600,640원", "10", "₩2,743,460,064", "당첨번호 6개 일치"})
	require.True(t, ok)
	require.Equal(t, 1, tier.Rank)
	require.EqualValues(t, 27434600640, tier.TotalAmount)
	require.EqualValues(t, 10, tier.Winners)
	require.EqualValues(t, 2743460064, tier.PerGame)
	require.Equal(t, "당첨번호 6개 일치", tier.Criteria)
}

func TestParsePrizeRowSkipsNonRankRows(t *testing.T) {
	t.Parallel()

	_, ok := ParsePrizeRow([]string{"순위", "등위별 총 당첨금액", "당첨게임 수", "1게임당 당첨금액"})
	require.False(t, ok)

	_, ok = ParsePrizeRow([]string{"합계", "50,000,000,000원", "100", "-"})
	require.False(t, ok)

	_, ok = ParsePrizeRow([]string{"1등", "짧은행"})
	require.False(t, ok)
}
