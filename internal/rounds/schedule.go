package rounds

import (
	"context"
	"time"

	"github.com/jwseok/lotto645-harvester/internal/clock"
	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// Draw cadence anchor: round 1152 was drawn Saturday 2024-12-28 KST, and
// results publish at 21:00 KST the same evening.
const (
	anchorRound       = 1152
	publishHourKST    = 21
	drawWeekday       = time.Saturday
	roundsPerWeek     = 1
	hoursPerDrawCycle = 7 * 24
)

var kst = time.FixedZone("KST", 9*60*60)

var anchorDate = time.Date(2024, time.December, 28, 0, 0, 0, 0, kst)

// ScheduleResolver derives the newest round from the weekly cadence alone.
// It makes zero network calls and cannot fail, but drifts if the publisher
// ever skips a week or moves the publish hour.
type ScheduleResolver struct {
	clock clock.Clock
}

// NewScheduleResolver builds the cadence strategy on the injected clock.
func NewScheduleResolver(c clock.Clock) *ScheduleResolver {
	return &ScheduleResolver{clock: c}
}

// Resolve computes anchor + elapsed weeks, minus one when called on the draw
// weekday before the publish hour. Idempotent for a fixed clock value.
func (r *ScheduleResolver) Resolve(_ context.Context) (Resolution, error) {
	now := r.clock.Now().In(kst)
	elapsed := now.Sub(anchorDate)
	weeks := int(elapsed.Hours()) / hoursPerDrawCycle
	if elapsed < 0 {
		weeks = 0
	}
	candidate := anchorRound + weeks*roundsPerWeek
	if now.Weekday() == drawWeekday && now.Hour() < publishHourKST {
		candidate--
	}
	if candidate < 1 {
		candidate = 1
	}
	return Resolution{Round: draw.Round(candidate), Strategy: StrategySchedule}, nil
}
