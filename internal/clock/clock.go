// Package clock defines the time source used by components that need to
// reason about the current moment, so tests can substitute a fixed clock.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
