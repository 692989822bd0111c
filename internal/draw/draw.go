// Package draw defines core types shared across harvester subsystems.
package draw

import (
	"fmt"

	"github.com/jwseok/lotto645-harvester/internal/hash/sha256"
)

// Round identifies one weekly draw. Rounds are positive, strictly
// increasing, and assigned by the publisher.
type Round int

// Tier identifies a ranked winner listing with its own table shape.
type Tier string

// Built-in tiers. The first tier paginates; the second is published on a
// single page.
const (
	TierFirst  Tier = "first"
	TierSecond Tier = "second"
)

// Record is one winner-store row normalized from an upstream table. It is
// immutable once produced and keeps only what dedup and aggregation need.
type Record struct {
	Round     Round  `json:"round"`
	Tier      Tier   `json:"tier"`
	Label     string `json:"label"`
	Method    string `json:"method,omitempty"`
	Address   string `json:"address"`
	Region    string `json:"region"`
	SubRegion string `json:"subRegion,omitempty"`
}

// Key identifies a record across pages of one section so a row repeated by
// the upstream pager is counted once.
type Key string

// Key derives the dedup identity from the fields that survive pagination.
// Method and region are deliberately excluded: they can vary with layout
// drift while still describing the same store.
func (r Record) Key() Key {
	seed := fmt.Sprintf("%d|%s|%s|%s", r.Round, r.Tier, r.Label, r.Address)
	return Key(sha256.Short([]byte(seed)))
}

// Result is one decoded draw from the number feed.
type Result struct {
	Round             Round  `json:"round"`
	Date              string `json:"date"`
	Numbers           [6]int `json:"numbers"`
	Bonus             int    `json:"bonus"`
	FirstPrizeAmount  int64  `json:"firstPrizeAmount"`
	FirstPrizeWinners int    `json:"firstPrizeWinners"`
	FirstPrizeTotal   int64  `json:"firstPrizeTotal"`
	TotalSales        int64  `json:"totalSales"`
}

// PrizeTier is one row of a round's prize breakdown table.
type PrizeTier struct {
	Rank        int    `json:"rank"`
	TotalAmount int64  `json:"totalAmount"`
	Winners     int64  `json:"winners"`
	PerGame     int64  `json:"perGame"`
	Criteria    string `json:"criteria,omitempty"`
}

// Failure records one unit that could not be completed. Failures ride along
// in snapshots and run reports instead of aborting sibling units.
type Failure struct {
	Unit   string `json:"unit"`
	Reason string `json:"reason"`
}

// UnitID names one (round, tier) harvest unit in logs and failure records.
func UnitID(round Round, tier Tier) string {
	return fmt.Sprintf("round-%d/%s", round, tier)
}
