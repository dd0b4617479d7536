package timeutil

import "time"

// Sleeper abstracts time.Sleep so callers can be tested without real delays.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

// NewRealSleeper returns a Sleeper backed by time.Sleep.
func NewRealSleeper() realSleeper {
	return realSleeper{}
}

func (realSleeper) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}

// Clock abstracts wall-clock reads for components that must be
// deterministically testable (lease expiry, backoff scheduling, cron firing).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// NewRealClock returns a Clock backed by time.Now.
func NewRealClock() realClock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}
