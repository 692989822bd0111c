package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

var prizeRankPattern = regexp.MustCompile(`([1-5])\s*등`)

// ParsePrizeRow maps one prize-breakdown row to a PrizeTier. Rows whose
// first cell carries no rank (headers, totals) come back ok=false. Money
// cells arrive with currency glyphs and commas; every non-digit is stripped.
func ParsePrizeRow(cells []string) (draw.PrizeTier, bool) {
	if len(cells) < 4 {
		return draw.PrizeTier{}, false
	}
	m := prizeRankPattern.FindStringSubmatch(cells[0])
	if m == nil {
		return draw.PrizeTier{}, false
	}
	rank, err := strconv.Atoi(m[1])
	if err != nil {
		return draw.PrizeTier{}, false
	}

	tier := draw.PrizeTier{
		Rank:        rank,
		TotalAmount: digitsOnly(cells[1]),
		Winners:     digitsOnly(cells[2]),
		PerGame:     digitsOnly(cells[3]),
	}
	if len(cells) > 4 {
		tier.Criteria = strings.TrimSpace(cells[4])
	}
	return tier, true
}

// digitsOnly parses a numeric cell by dropping everything that is not a
// digit. A cell with no digits at all is zero.
func digitsOnly(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
