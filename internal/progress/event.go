package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported run stages.
const (
	StageRunStart    Stage = "run_start"
	StageResolveDone Stage = "resolve_done"
	StageUnitStart   Stage = "unit_start"
	StagePageDone    Stage = "page_done"
	StageUnitDone    Stage = "unit_done"
	StageUnitError   Stage = "unit_error"
	StageRunDone     Stage = "run_done"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of harvester progress.
type Event struct {
	// RunID identifies the harvest run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Unit scopes unit and page events to one (round, tier).
	Unit string
	// Round and Tier break the unit out for metric labels.
	Round int
	Tier  string
	// Page is the page number for page events.
	Page int
	// Records carries the record delta for page events and the unit total
	// for unit completions.
	Records int
	// Bytes carries the decoded response size for page events.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Stop names the unit's stop reason on unit completions.
	Stop string
	// Deviated flags a resolve event whose probe and schedule estimates
	// disagreed beyond tolerance.
	Deviated bool
	// Dur captures execution latency for pages and unit completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageResolveDone, StageRunDone:
	case StageUnitStart, StageUnitDone, StageUnitError:
		if e.Unit == "" {
			return fmt.Errorf("%s requires unit", e.Stage)
		}
	case StagePageDone:
		if e.Unit == "" {
			return errors.New("page done requires unit")
		}
		if e.Page < 1 {
			return errors.New("page done requires page >= 1")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
