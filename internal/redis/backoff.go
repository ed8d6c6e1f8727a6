package redis

import (
	mathrand "math/rand"
	"time"
)

const jitterPercent = 0.2

// backoff yields doubling delays capped at max, each spread by +/-20% jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

func (b *backoff) Next() time.Duration {
	d := addJitter(b.current)
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.current = b.initial
}

func addJitter(interval time.Duration) time.Duration {
	jitterRange := float64(interval) * jitterPercent
	jitter := (mathrand.Float64() - 0.5) * 2 * jitterRange
	return time.Duration(float64(interval) + jitter)
}
