package settlement

import "time"

// Request amount bounds in minor units.
const (
	MinRequestAmount int64 = 10
	MaxRequestAmount int64 = 100000
)

// Commission terms: 2% of the withdrawn amount with a floor.
const (
	CommissionRatePercent int64 = 2
	CommissionFloor       int64 = 10
)

// RequestTTL is how long a pending request stays claimable before it
// lazily expires.
const RequestTTL = time.Hour

// Commission computes the agent's cut for a withdrawal amount. Integer
// minor-unit arithmetic throughout; the floor applies when 2% rounds
// below it.
func Commission(amount int64) int64 {
	c := amount * CommissionRatePercent / 100
	if c < CommissionFloor {
		return CommissionFloor
	}
	return c
}
