package locate

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// Candidate is one table-like region of a page plus the structural metadata
// the locator scores: header tokens, data rows, and the text anchoring it
// (caption and nearby preceding labels).
type Candidate struct {
	index   int
	Headers []string
	Rows    [][]string
	anchors []string
}

// Document is one parsed page with its candidate tables enumerated and a
// record of which candidate each tier has already claimed, so a second tier
// on the same page never resolves to a sibling's table.
type Document struct {
	candidates []*Candidate
	claimed    map[int]draw.Tier
}

// Parse enumerates the candidate tables of one fetched page.
func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	d := &Document{claimed: make(map[int]draw.Tier)}
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		cand := &Candidate{index: i}
		cand.Headers, cand.Rows = splitTable(sel)
		cand.anchors = anchorTexts(sel)
		d.candidates = append(d.candidates, cand)
	})
	return d, nil
}

// Candidates exposes the enumerated tables in document order.
func (d *Document) Candidates() []*Candidate {
	return d.candidates
}

func (d *Document) claim(index int, tier draw.Tier) {
	d.claimed[index] = tier
}

// available reports whether a candidate may still serve the given tier.
// A candidate claimed by a different tier is off the table; re-locating the
// same tier stays deterministic.
func (d *Document) available(index int, tier draw.Tier) bool {
	owner, taken := d.claimed[index]
	return !taken || owner == tier
}

// splitTable separates one table into its header tokens and data rows.
// The header row is the first row carrying th cells, or the first row
// when the markup never uses th.
func splitTable(sel *goquery.Selection) ([]string, [][]string) {
	var headers []string
	var rows [][]string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Rows of nested tables belong to their own candidate.
		if tr.Closest("table").Get(0) != sel.Get(0) {
			return
		}
		ths := tr.Find("th")
		if headers == nil && ths.Length() > 0 {
			headers = cellTexts(ths)
			return
		}
		cells := cellTexts(tr.Find("td"))
		if len(cells) == 0 {
			return
		}
		if headers == nil && len(rows) == 0 {
			headers = cells
			return
		}
		rows = append(rows, cells)
	})
	return headers, rows
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, collapse(c.Text()))
	})
	return out
}

// anchorTexts gathers the text that introduces a table on the page: its
// caption, a handful of preceding siblings, and the container's preceding
// siblings. Markup revisions have put the tier label in each of these spots.
func anchorTexts(sel *goquery.Selection) []string {
	var anchors []string
	if caption := collapse(sel.Find("caption").First().Text()); caption != "" {
		anchors = append(anchors, caption)
	}
	anchors = appendSiblingTexts(anchors, sel, 3)
	if parent := sel.Parent(); parent.Length() > 0 {
		anchors = appendSiblingTexts(anchors, parent, 3)
	}
	return anchors
}

func appendSiblingTexts(anchors []string, sel *goquery.Selection, limit int) []string {
	prev := sel.Prev()
	for i := 0; i < limit && prev.Length() > 0; i++ {
		if prev.Is("table") {
			break
		}
		if text := collapse(prev.Text()); text != "" {
			anchors = append(anchors, text)
		}
		prev = prev.Prev()
	}
	return anchors
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
