// Package normalize converts raw table rows into structured records and
// resolves free-text store addresses into region codes. Everything here is
// pure text manipulation driven by configurable rule tables.
package normalize

import (
	"strings"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// Shape maps a tier's columns onto record fields. MethodIndex is -1 for
// tiers without a win-method column.
type Shape struct {
	NameIndex    int
	MethodIndex  int
	AddressIndex int
	MinCells     int
}

// Config is the rule table the normalizer runs on. All of it is data so an
// upstream revision is a configuration edit.
type Config struct {
	// Aliases map long-form administrative names to short region codes.
	Aliases map[string]string
	// OnlineMarkers flag electronic-channel rows; matched against both the
	// store name and the address, case-insensitively.
	OnlineMarkers []string
	// OnlineCode and UnclassifiedCode are the special region codes.
	OnlineCode       string
	UnclassifiedCode string
	// NoResultPhrases identify the upstream's empty-listing filler row.
	NoResultPhrases []string
	// Header keywords: a row carrying both a name and an address keyword is
	// a header echoed into the body, not data.
	NameKeywords    []string
	AddressKeywords []string
	// Shapes index record fields per tier.
	Shapes map[draw.Tier]Shape
}

// DefaultConfig returns the rules matching the publisher's current markup.
func DefaultConfig() Config {
	return Config{
		Aliases: map[string]string{
			"서울특별시":   "서울",
			"서울시":     "서울",
			"부산광역시":   "부산",
			"대구광역시":   "대구",
			"인천광역시":   "인천",
			"광주광역시":   "광주",
			"대전광역시":   "대전",
			"울산광역시":   "울산",
			"세종특별자치시": "세종",
			"경기도":     "경기",
			"강원특별자치도": "강원",
			"강원도":     "강원",
			"충청북도":    "충북",
			"충청남도":    "충남",
			"전북특별자치도": "전북",
			"전라북도":    "전북",
			"전라남도":    "전남",
			"경상북도":    "경북",
			"경상남도":    "경남",
			"제주특별자치도": "제주",
			"제주도":     "제주",
		},
		OnlineMarkers:    []string{"동행복권", "dhlottery.co.kr", "인터넷"},
		OnlineCode:       "온라인",
		UnclassifiedCode: "기타",
		NoResultPhrases:  []string{"조회 결과가 없습니다"},
		NameKeywords:     []string{"상호명", "상호"},
		AddressKeywords:  []string{"소재지", "주소"},
		Shapes: map[draw.Tier]Shape{
			draw.TierFirst:  {NameIndex: 1, MethodIndex: 2, AddressIndex: 3, MinCells: 4},
			draw.TierSecond: {NameIndex: 1, MethodIndex: -1, AddressIndex: 2, MinCells: 3},
		},
	}
}

// Normalizer applies the rule table to raw rows.
type Normalizer struct {
	cfg    Config
	shorts map[string]struct{}
}

// New builds a Normalizer over the given rules.
func New(cfg Config) *Normalizer {
	shorts := make(map[string]struct{}, len(cfg.Aliases))
	for _, short := range cfg.Aliases {
		shorts[short] = struct{}{}
	}
	return &Normalizer{cfg: cfg, shorts: shorts}
}

// Normalize maps one raw row to a record, or rejects it as non-data.
// Rejection is an expected outcome, not an error: header echoes, empty
// listings, and short rows all come back ok=false.
func (n *Normalizer) Normalize(round draw.Round, tier draw.Tier, cells []string) (draw.Record, bool) {
	shape, ok := n.cfg.Shapes[tier]
	if !ok {
		return draw.Record{}, false
	}
	if len(cells) < shape.MinCells {
		return draw.Record{}, false
	}
	joined := strings.Join(cells, " ")
	if n.isHeader(joined) || n.isNoResult(joined) {
		return draw.Record{}, false
	}

	rec := draw.Record{
		Round:   round,
		Tier:    tier,
		Label:   strings.TrimSpace(cells[shape.NameIndex]),
		Address: strings.TrimSpace(cells[shape.AddressIndex]),
	}
	if shape.MethodIndex >= 0 && shape.MethodIndex < len(cells) {
		rec.Method = strings.TrimSpace(cells[shape.MethodIndex])
	}
	if rec.Label == "" && rec.Address == "" {
		return draw.Record{}, false
	}
	rec.Region, rec.SubRegion = n.Region(rec.Label, rec.Address)
	return rec, true
}

// Region resolves a store name and free-text address to a region code and
// sub-region. Online-channel rows take precedence over any administrative
// token the text happens to contain. Never fails: the worst case is the
// unclassified code.
func (n *Normalizer) Region(name, address string) (string, string) {
	if n.isOnline(name) || n.isOnline(address) {
		return n.cfg.OnlineCode, ""
	}

	tokens := strings.Fields(address)
	if len(tokens) == 0 {
		return n.cfg.UnclassifiedCode, ""
	}

	if region, ok := n.regionOf(tokens[0]); ok {
		return region, tokenAt(tokens, 1)
	}
	// The leading token missed; an administrative name anywhere in the text
	// still classifies the row.
	for i := 1; i < len(tokens); i++ {
		if region, ok := n.regionOf(tokens[i]); ok {
			return region, tokenAt(tokens, i+1)
		}
	}
	return n.cfg.UnclassifiedCode, ""
}

// regionOf canonicalizes one token: an alias key, an already-short code, or
// a token that begins with either (markup sometimes glues the district on).
func (n *Normalizer) regionOf(token string) (string, bool) {
	if short, ok := n.cfg.Aliases[token]; ok {
		return short, true
	}
	if _, ok := n.shorts[token]; ok {
		return token, true
	}
	for long, short := range n.cfg.Aliases {
		if strings.HasPrefix(token, long) {
			return short, true
		}
	}
	return "", false
}

func (n *Normalizer) isOnline(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range n.cfg.OnlineMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (n *Normalizer) isHeader(joined string) bool {
	return containsAny(joined, n.cfg.NameKeywords) && containsAny(joined, n.cfg.AddressKeywords)
}

func (n *Normalizer) isNoResult(joined string) bool {
	return containsAny(joined, n.cfg.NoResultPhrases)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func tokenAt(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}
