// Package alert raises a proximity alert when a severe storm cell enters the
// alert radius. Alerts are edge-triggered: one per entry, re-armed once the
// storm leaves range, and rate-limited by a cool-down.
package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultCooldown = 30 * time.Minute
	publishTimeout  = 10 * time.Second
)

// Publisher delivers an alert somewhere.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, alert domain.ProximityAlert) error
}

// Source provides state changes to watch.
type Source interface {
	Subscribe(fn func(store.Change, store.Snapshot)) func()
}

// Notifier tracks whether the user is currently in range of a storm.
type Notifier struct {
	publishers []Publisher
	clock      clockwork.Clock
	cooldown   time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	inRange  bool
	lastSent time.Time
}

// NewNotifier creates a notifier fanning out to publishers.
func NewNotifier(publishers []Publisher, clock clockwork.Clock, cooldown time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Notifier{
		publishers: publishers,
		clock:      clock,
		cooldown:   cooldown,
		logger:     logger,
		metrics:    metrics,
	}
}

// Evaluate advances the in-range state and returns an alert when a storm has
// just entered range and the cool-down has elapsed.
func (n *Notifier) Evaluate(nearest *domain.NearestStorm, loc *domain.UserLocation) (domain.ProximityAlert, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if nearest == nil || loc == nil {
		n.inRange = false
		return domain.ProximityAlert{}, false
	}
	if n.inRange {
		return domain.ProximityAlert{}, false
	}
	n.inRange = true

	now := n.clock.Now()
	if !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.cooldown {
		n.logger.Debug("storm in range, alert suppressed by cool-down", "distance_km", nearest.DistanceKm)
		return domain.ProximityAlert{}, false
	}
	n.lastSent = now

	return domain.ProximityAlert{
		ID:         uuid.NewString(),
		DistanceKm: nearest.DistanceKm,
		Cell:       nearest.Cell,
		Location:   *loc,
		Intensity:  domain.ClassifyReflectivity(nearest.Cell.MaxDBZ),
		DetectedAt: now.UTC(),
	}, true
}

// Publish sends alert to every publisher. A failing publisher does not stop
// the others; their errors are joined.
func (n *Notifier) Publish(ctx context.Context, alert domain.ProximityAlert) error {
	var errs []error
	for _, p := range n.publishers {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.Publish(pctx, alert)
		cancel()

		outcome := "success"
		if err != nil {
			outcome = "error"
			errs = append(errs, err)
			n.logger.Warn("publish proximity alert failed", "publisher", p.Name(), "alert_id", alert.ID, "error", err)
		}
		n.metrics.AlertsPublished.WithLabelValues(p.Name(), outcome).Inc()
	}
	return errors.Join(errs...)
}

// Run watches src for location and frame changes until ctx is cancelled.
// Evaluation happens off the store's callback so publishing never blocks
// writers; only the newest snapshot is kept while one is being handled.
func (n *Notifier) Run(ctx context.Context, src Source) error {
	updates := make(chan store.Snapshot, 1)
	unsubscribe := src.Subscribe(func(c store.Change, s store.Snapshot) {
		if c != store.ChangeImages && c != store.ChangeLocation {
			return
		}
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	n.logger.Info("proximity alerts enabled", "publishers", len(n.publishers), "cooldown", n.cooldown)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-updates:
			alert, ok := n.Evaluate(s.Nearest, s.Location)
			if !ok {
				continue
			}
			n.logger.Info("storm entered alert radius",
				"alert_id", alert.ID,
				"distance_km", alert.DistanceKm,
				"max_dbz", alert.Cell.MaxDBZ,
			)
			_ = n.Publish(ctx, alert)
		}
	}
}
