// Package rounds discovers the newest published draw round. The probe
// strategy interrogates the number feed and is authoritative; the schedule
// strategy derives the round from the weekly cadence and cannot fail. A
// chain runs both and alarms when they drift apart.
package rounds

import (
	"context"

	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// Strategy names recorded on resolutions.
const (
	StrategyProbe    = "probe"
	StrategySchedule = "schedule"
	StrategyPageHint = "page-hint"
)

// Resolution carries the resolved round and how it was obtained.
type Resolution struct {
	Round draw.Round `json:"round"`
	// Strategy names the resolver that produced Round.
	Strategy string `json:"strategy"`
	// ScheduleRound is the cadence-derived value when the chain computed
	// one, kept for the deviation alarm.
	ScheduleRound draw.Round `json:"scheduleRound,omitempty"`
	// Deviation is |probe − schedule| when both strategies produced values.
	Deviation int  `json:"deviation,omitempty"`
	Deviated  bool `json:"deviated,omitempty"`
}

// Resolver produces the newest round the source currently publishes.
type Resolver interface {
	Resolve(ctx context.Context) (Resolution, error)
}

// Chain resolves via the probe strategy and falls back to the schedule
// strategy on probe failure. With no schedule resolver configured, probe
// failure is fatal.
type Chain struct {
	probe     Resolver
	schedule  Resolver
	tolerance int
	logger    *zap.Logger
}

// NewChain wires the authoritative and fallback resolvers. tolerance is the
// largest probe/schedule disagreement that passes without an alarm.
func NewChain(probe, schedule Resolver, tolerance int, logger *zap.Logger) *Chain {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Chain{probe: probe, schedule: schedule, tolerance: tolerance, logger: logger}
}

// Resolve returns the probe-derived round when the probe succeeds, the
// schedule-derived round otherwise. A disagreement beyond the tolerance is
// logged and flagged on the resolution so callers can alarm on it.
func (c *Chain) Resolve(ctx context.Context) (Resolution, error) {
	var schedRes Resolution
	haveSchedule := false
	if c.schedule != nil {
		var err error
		schedRes, err = c.schedule.Resolve(ctx)
		haveSchedule = err == nil
	}

	probeRes, err := c.probe.Resolve(ctx)
	if err != nil {
		if !haveSchedule {
			return Resolution{}, err
		}
		c.logger.Warn("probe resolution failed, falling back to schedule",
			zap.Int("schedule_round", int(schedRes.Round)),
			zap.Error(err))
		return schedRes, nil
	}

	res := probeRes
	if haveSchedule {
		res.ScheduleRound = schedRes.Round
		res.Deviation = absInt(int(probeRes.Round) - int(schedRes.Round))
		res.Deviated = res.Deviation > c.tolerance
		if res.Deviated {
			c.logger.Warn("probe and schedule rounds disagree",
				zap.Int("probe_round", int(probeRes.Round)),
				zap.Int("schedule_round", int(schedRes.Round)),
				zap.Int("deviation", res.Deviation),
				zap.Int("tolerance", c.tolerance))
		}
	}
	return res, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
