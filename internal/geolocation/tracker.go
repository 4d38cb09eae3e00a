package geolocation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultRefreshInterval = 5 * time.Minute
	reportTimeout          = 10 * time.Second
)

// LocationStore is the part of the application state the tracker touches.
type LocationStore interface {
	SetLocation(domain.UserLocation)
	SetLocationError(domain.LocationErrorKind)
	Token() string
	Subscribe(fn func(store.Change, store.Snapshot)) func()
}

// Reporter forwards a fix to the backend for server-side alerts.
type Reporter interface {
	UpdateLocation(ctx context.Context, token string, loc domain.UserLocation) error
}

// Tracker keeps the user's location current.
type Tracker struct {
	locator  Locator
	store    LocationStore
	reporter Reporter
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	reports sync.WaitGroup
}

// NewTracker creates a tracker. reporter may be nil to skip forwarding.
func NewTracker(locator Locator, st LocationStore, reporter Reporter, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Tracker{
		locator:  locator,
		store:    st,
		reporter: reporter,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Refresh obtains a fix, retrying once at low accuracy, and records the
// outcome. Failures are returned but are never fatal to the caller.
func (t *Tracker) Refresh(ctx context.Context) error {
	loc, err := t.locate(ctx, HighAccuracy)
	if err != nil && ctx.Err() == nil {
		t.logger.Debug("high accuracy location failed, retrying at low accuracy", "error", err)
		loc, err = t.locate(ctx, LowAccuracy)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		kind := domain.ClassifyLocationError(err)
		t.store.SetLocationError(kind)
		t.metrics.LocationRefreshes.WithLabelValues(string(kind)).Inc()
		t.logger.Warn("location unavailable", "kind", kind, "error", err)
		return err
	}

	t.store.SetLocation(loc)
	t.metrics.LocationRefreshes.WithLabelValues("success").Inc()

	if token := t.store.Token(); token != "" && t.reporter != nil {
		t.reports.Go(func() { t.report(ctx, token, loc) })
	}
	return nil
}

func (t *Tracker) locate(ctx context.Context, opts Options) (domain.UserLocation, error) {
	lctx, cancel := clockwork.WithTimeout(ctx, t.clock, opts.Timeout)
	defer cancel()

	loc, err := t.locator.Locate(lctx, opts)
	if err != nil && done(lctx) && !done(ctx) {
		return loc, fmt.Errorf("%w after %s: %w", domain.ErrLocationTimeout, opts.Timeout, err)
	}
	return loc, err
}

// done reports whether ctx has ended without blocking. Err on a context from
// clockwork.WithTimeout waits for the deadline, so it is only consulted once
// Done is closed.
func done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// report is fire-and-forget: the result only affects server-side alerts.
func (t *Tracker) report(ctx context.Context, token string, loc domain.UserLocation) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := t.reporter.UpdateLocation(rctx, token, loc); err != nil {
		t.logger.Warn("forward location to backend failed", "error", err)
	}
}

// Run refreshes on start, every interval, and whenever the login state
// changes, until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	var loggedIn atomic.Bool
	loggedIn.Store(t.store.Token() != "")

	loginChanged := make(chan struct{}, 1)
	unsubscribe := t.store.Subscribe(func(c store.Change, s store.Snapshot) {
		if c != store.ChangeSession {
			return
		}
		if loggedIn.Swap(s.LoggedIn()) == s.LoggedIn() {
			return
		}
		select {
		case loginChanged <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("location tracker started", "interval", t.interval)
	defer func() {
		t.reports.Wait()
		t.logger.Info("location tracker stopped", "reason", ctx.Err())
	}()

	for {
		_ = t.Refresh(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		case <-loginChanged:
		}
	}
}
