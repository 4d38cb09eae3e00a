// Package geolocation determines the user's position. A Tracker asks a
// Locator for a precise fix first and falls back to a coarse, possibly cached
// one, then records the result or a categorized failure in the store.
package geolocation

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// Options mirror the knobs of a position request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is how old a cached fix may be and still satisfy the request.
	MaximumAge time.Duration
}

var (
	// HighAccuracy is the first attempt of every refresh.
	HighAccuracy = Options{HighAccuracy: true, Timeout: 5 * time.Second}
	// LowAccuracy is the retry after the precise attempt fails.
	LowAccuracy = Options{Timeout: 15 * time.Second, MaximumAge: 10 * time.Minute}
)

// Locator produces a position fix.
type Locator interface {
	Locate(ctx context.Context, opts Options) (domain.UserLocation, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, opts Options) (domain.UserLocation, error)

func (f LocatorFunc) Locate(ctx context.Context, opts Options) (domain.UserLocation, error) {
	return f(ctx, opts)
}

// Static always reports a configured position.
type Static struct {
	Location domain.UserLocation
}

func (s Static) Locate(context.Context, Options) (domain.UserLocation, error) {
	return s.Location, nil
}

// Unsupported is the locator used when no position source is configured.
type Unsupported struct{}

func (Unsupported) Locate(context.Context, Options) (domain.UserLocation, error) {
	return domain.UserLocation{}, domain.ErrLocationUnsupported
}

// Chain tries each locator in order and returns the first fix. Unsupported
// sources are skipped when reporting failure, so the error describes the
// last source that actually tried.
type Chain []Locator

func (c Chain) Locate(ctx context.Context, opts Options) (domain.UserLocation, error) {
	var lastErr error
	for _, l := range c {
		loc, err := l.Locate(ctx, opts)
		if err == nil {
			return loc, nil
		}
		if done(ctx) {
			return domain.UserLocation{}, ctx.Err()
		}
		if errors.Is(err, domain.ErrLocationUnsupported) && lastErr != nil {
			continue
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = domain.ErrLocationUnsupported
	}
	return domain.UserLocation{}, lastErr
}
