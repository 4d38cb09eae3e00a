// Package fallback decorates the backend client so the radar view keeps
// rendering while the backend is unreachable. Each resource has its own
// circuit breaker; when the primary fails or the breaker is open the last
// good response is served, or the embedded fixture if there is none yet.
// Fallback results come back with an error wrapping domain.ErrDegraded.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrBreakerOpen is the cause reported while a resource's breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Primary is the live data source being protected.
type Primary interface {
	Status(ctx context.Context) (domain.Status, error)
	Images(ctx context.Context) (domain.ImageSet, error)
	Reports(ctx context.Context, hours int) ([]domain.WeatherReport, error)
}

// Options tunes the breakers. Zero values select defaults.
type Options struct {
	Clock            clockwork.Clock
	FailureThreshold int
	InitialCooldown  time.Duration
	MaxCooldown      time.Duration
}

// Source serves primary data when it can and fallback data when it cannot.
type Source struct {
	primary Primary
	metrics *observability.Metrics
	logger  *slog.Logger

	status  *resource[domain.Status]
	images  *resource[domain.ImageSet]
	reports *resource[[]domain.WeatherReport]
}

// NewSource wraps primary with per-resource breakers and the given fixture.
func NewSource(primary Primary, fixture Fixture, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Source {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = defaultFailureThreshold
	}
	if opts.InitialCooldown <= 0 {
		opts.InitialCooldown = defaultInitialCooldown
	}
	if opts.MaxCooldown < opts.InitialCooldown {
		opts.MaxCooldown = max(defaultMaxCooldown, opts.InitialCooldown)
	}
	nb := func() *breaker {
		return newBreaker(opts.Clock, opts.FailureThreshold, opts.InitialCooldown, opts.MaxCooldown)
	}

	return &Source{
		primary: primary,
		metrics: metrics,
		logger:  logger,
		status:  &resource[domain.Status]{name: "status", breaker: nb(), fixture: fixture.Status},
		images:  &resource[domain.ImageSet]{name: "images", breaker: nb(), fixture: fixture.Images},
		reports: &resource[[]domain.WeatherReport]{name: "reports", breaker: nb(), fixture: fixture.Reports},
	}
}

// Status returns the backend status or a fallback copy.
func (s *Source) Status(ctx context.Context) (domain.Status, error) {
	return fetch(ctx, s, s.status, s.primary.Status)
}

// Images returns the frame lists or a fallback copy.
func (s *Source) Images(ctx context.Context) (domain.ImageSet, error) {
	return fetch(ctx, s, s.images, s.primary.Images)
}

// Reports returns recent reports or a fallback copy.
func (s *Source) Reports(ctx context.Context, hours int) ([]domain.WeatherReport, error) {
	return fetch(ctx, s, s.reports, func(ctx context.Context) ([]domain.WeatherReport, error) {
		return s.primary.Reports(ctx, hours)
	})
}

// resource tracks one endpoint's breaker and last good value.
type resource[T any] struct {
	name    string
	breaker *breaker
	fixture T

	mu   sync.Mutex
	last T
	have bool
}

func (r *resource[T]) remember(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last, r.have = v, true
}

func (r *resource[T]) fallback() (T, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.have {
		return r.last, "cache"
	}
	return r.fixture, "fixture"
}

func fetch[T any](ctx context.Context, s *Source, r *resource[T], call func(context.Context) (T, error)) (T, error) {
	if !r.breaker.allow() {
		return degrade(s, r, ErrBreakerOpen)
	}

	v, err := call(ctx)
	if err == nil {
		r.breaker.success()
		r.remember(v)
		s.metrics.BreakerOpen.WithLabelValues(r.name).Set(0)
		return v, nil
	}

	// A cancelled poll is shutdown, not a backend failure.
	if ctx.Err() != nil {
		var zero T
		return zero, err
	}

	if r.breaker.failure() {
		s.metrics.BreakerOpen.WithLabelValues(r.name).Set(1)
		s.logger.Warn("circuit breaker opened", "resource", r.name, "error", err)
	}
	return degrade(s, r, err)
}

func degrade[T any](s *Source, r *resource[T], cause error) (T, error) {
	v, origin := r.fallback()
	s.metrics.FallbackServed.WithLabelValues(r.name).Inc()
	s.logger.Debug("serving fallback data", "resource", r.name, "origin", origin, "cause", cause)
	return v, fmt.Errorf("%s: %w: %w", r.name, domain.ErrDegraded, cause)
}
