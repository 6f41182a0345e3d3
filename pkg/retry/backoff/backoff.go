// Package backoff provides the delay schedules used between retries.
package backoff

import (
	"math"
	"time"
)

// Strategy returns how long to wait before the next attempt. Attempts start
// at 1.
type Strategy func(attempts uint) time.Duration

// Constant waits the same interval before every attempt.
func Constant(interval time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return interval
	}
}

// BinaryExponential doubles the delay on every attempt, saturating at the
// largest representable duration.
//
// delay = baseDelay * 2^(attempts - 1)
// Ex. BinaryExponential(25*time.Millisecond) = 25ms, 50ms, 100ms, 200ms, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}

		shift := attempts - 1
		if shift >= 63 || baseDelay > time.Duration(math.MaxInt64>>shift) {
			return math.MaxInt64
		}
		return baseDelay << shift
	}
}
