package locate

import "github.com/jwseok/lotto645-harvester/internal/draw"

// Profile describes what a tier's table looks like: the label that names it
// on the page, the header keywords that identify its columns, and the column
// counts its revisions have used. Profiles are data so upstream markup drift
// is a configuration edit, not a code change.
type Profile struct {
	Tier draw.Tier
	// Label uniquely names the tier's section on the page.
	Label string
	// StopLabels mark the start of another tier's rows when several tiers
	// share one physical table; emission stops at the first match.
	StopLabels []string
	// Header keywords, matched against the header row.
	NameKeywords    []string
	AddressKeywords []string
	// TierKeywords distinguish this tier's table from its siblings, e.g.
	// the win-method column only the first tier carries.
	TierKeywords []string
	// MinColumns is the smallest plausible header width.
	MinColumns int
	// ColumnSpans are the header widths seen across markup revisions.
	ColumnSpans []int
}

// DefaultProfiles returns the locator profiles for the built-in tiers,
// keyed by tier. Values mirror the publisher's current markup.
func DefaultProfiles() map[draw.Tier]Profile {
	return map[draw.Tier]Profile{
		draw.TierFirst: {
			Tier:            draw.TierFirst,
			Label:           "1등 배출점",
			StopLabels:      []string{"2등 배출점"},
			NameKeywords:    []string{"상호명", "상호"},
			AddressKeywords: []string{"소재지", "주소"},
			TierKeywords:    []string{"구분"},
			MinColumns:      4,
			ColumnSpans:     []int{4, 5},
		},
		draw.TierSecond: {
			Tier:            draw.TierSecond,
			Label:           "2등 배출점",
			StopLabels:      []string{"3등 배출점"},
			NameKeywords:    []string{"상호명", "상호"},
			AddressKeywords: []string{"소재지", "주소"},
			MinColumns:      3,
			ColumnSpans:     []int{3, 4},
		},
	}
}

// PrizeProfile locates the per-rank prize breakdown table on a result page.
func PrizeProfile() Profile {
	return Profile{
		Tier:            draw.Tier("prize"),
		Label:           "등위별 총 당첨금액",
		NameKeywords:    []string{"순위", "등위"},
		AddressKeywords: []string{"당첨금"},
		MinColumns:      4,
		ColumnSpans:     []int{4, 5, 6},
	}
}
