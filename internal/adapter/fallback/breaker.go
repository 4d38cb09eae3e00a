package fallback

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

const (
	defaultFailureThreshold = 3
	defaultInitialCooldown  = 10 * time.Second
	defaultMaxCooldown      = 2 * time.Minute
)

// breaker is a consecutive-failure circuit breaker. Once open it rejects
// calls until its cool-down elapses, then lets a single trial call through. A
// failed trial call re-opens it with the next, longer cool-down.
type breaker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	threshold int
	failures  int
	openUntil time.Time
	cooldown  *backoff.ExponentialBackOff
}

func newBreaker(clock clockwork.Clock, threshold int, initial, maxCooldown time.Duration) *breaker {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxCooldown
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = clock
	b.Reset()

	return &breaker{
		clock:     clock,
		threshold: threshold,
		cooldown:  b,
	}
}

// allow reports whether a call to the primary may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openUntil.IsZero() || !b.clock.Now().Before(b.openUntil)
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.cooldown.Reset()
}

// failure records a failed call and reports whether the breaker tripped.
func (b *breaker) failure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures < b.threshold {
		return false
	}
	b.openUntil = b.clock.Now().Add(b.cooldown.NextBackOff())
	return true
}
