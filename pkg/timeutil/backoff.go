package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoffDelay computes backoffParam.InitialDuration() *
// backoffParam.Multiplier()^(backoffCount-1), capped at
// backoffParam.MaxDuration(), plus a uniform random jitter in [0, jitter].
// backoffCount is 1-indexed: the first attempt (count=1) gets no growth.
func ExponentialBackoffDelay(backoffCount int, jitter time.Duration, rng rand.Rand, backoffParam BackoffParam) time.Duration {
	exponent := float64(backoffCount - 1)
	base := float64(backoffParam.InitialDuration()) * math.Pow(backoffParam.Multiplier(), exponent)
	if base < 0 {
		base = 0
	}

	delay := time.Duration(base)
	if maxDuration := backoffParam.MaxDuration(); maxDuration > 0 && delay > maxDuration {
		delay = maxDuration
	}

	if jitter > 0 {
		delay += time.Duration(rng.Int63n(int64(jitter) + 1))
	}
	return delay
}

// ComputeJitter returns a uniform random duration in [0, max), or 0 when
// max is not positive.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}
