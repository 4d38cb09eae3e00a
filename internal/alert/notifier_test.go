package alert_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/alert"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []domain.ProximityAlert
}

func (r *recordingPublisher) Name() string { return r.name }

func (r *recordingPublisher) Publish(_ context.Context, a domain.ProximityAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

var (
	home    = &domain.UserLocation{Lat: 0, Lon: 0}
	nearby  = &domain.NearestStorm{DistanceKm: 11.1, Cell: domain.StormCell{Lat: 0.1, Lon: 0, MaxDBZ: 62}}
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	cooling = 30 * time.Minute
)

func TestNotifier_EdgeTriggered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := alert.NewNotifier(nil, clock, 0, logger, observability.NewMetricsForTesting())

	a, ok := n.Evaluate(nearby, home)
	require.True(t, ok)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 11.1, a.DistanceKm)
	assert.Equal(t, domain.IntensitySevere, a.Intensity)
	assert.Equal(t, *home, a.Location)
	assert.Equal(t, clock.Now().UTC(), a.DetectedAt)

	_, ok = n.Evaluate(nearby, home)
	assert.False(t, ok, "still in range: no second alert")

	_, ok = n.Evaluate(nil, home)
	assert.False(t, ok)

	b, ok := n.Evaluate(nearby, home)
	require.True(t, ok, "re-armed after leaving range")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNotifier_Cooldown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	n := alert.NewNotifier(nil, clock, cooling, logger, observability.NewMetricsForTesting())

	_, ok := n.Evaluate(nearby, home)
	require.True(t, ok)

	n.Evaluate(nil, home)
	clock.Advance(10 * time.Minute)
	_, ok = n.Evaluate(nearby, home)
	assert.False(t, ok, "within cool-down")

	n.Evaluate(nil, home)
	clock.Advance(20 * time.Minute)
	_, ok = n.Evaluate(nearby, home)
	assert.True(t, ok, "cool-down elapsed")
}

func TestNotifier_NoLocationNoAlert(t *testing.T) {
	n := alert.NewNotifier(nil, clockwork.NewFakeClock(), 0, logger, observability.NewMetricsForTesting())
	_, ok := n.Evaluate(nearby, nil)
	assert.False(t, ok)
}

func TestNotifier_PublishFansOut(t *testing.T) {
	good := &recordingPublisher{name: "good"}
	bad := &recordingPublisher{name: "bad", err: errors.New("broker down")}
	m := observability.NewMetricsForTesting()
	n := alert.NewNotifier([]alert.Publisher{bad, good}, clockwork.NewFakeClock(), 0, logger, m)

	err := n.Publish(context.Background(), domain.ProximityAlert{ID: "a1"})
	require.Error(t, err)
	assert.Equal(t, 1, good.count(), "failure does not block other publishers")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsPublished.WithLabelValues("good", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsPublished.WithLabelValues("bad", "error")))
}

func TestNotifier_RunWatchesStore(t *testing.T) {
	pub := &recordingPublisher{name: "rec"}
	n := alert.NewNotifier([]alert.Publisher{pub}, clockwork.NewFakeClock(), 0, logger, observability.NewMetricsForTesting())
	st := store.New(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, st) }()

	// Give Run time to subscribe before the first change.
	require.Eventually(t, func() bool {
		st.SetLocation(*home)
		st.SetImages(domain.ImageSet{InputImages: []domain.Frame{{
			URL:   "/a.png",
			Cells: []domain.StormCell{nearby.Cell},
		}}})
		return pub.count() == 1
	}, time.Second, 10*time.Millisecond)

	// Storm leaves, then returns.
	require.Eventually(t, func() bool {
		st.SetImages(domain.ImageSet{})
		st.SetImages(domain.ImageSet{InputImages: []domain.Frame{{URL: "/b.png", Cells: []domain.StormCell{nearby.Cell}}}})
		return pub.count() >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
