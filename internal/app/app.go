// Package app wires the radar client together: backend polling, the frame
// timeline, location tracking, sessions, alerts and the local API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-watch/internal/adapter/fallback"
	httpadapter "github.com/couchcryptid/storm-radar-watch/internal/adapter/http"
	"github.com/couchcryptid/storm-radar-watch/internal/adapter/ipgeo"
	kafkaadapter "github.com/couchcryptid/storm-radar-watch/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-watch/internal/adapter/opensky"
	"github.com/couchcryptid/storm-radar-watch/internal/adapter/prefs"
	"github.com/couchcryptid/storm-radar-watch/internal/alert"
	"github.com/couchcryptid/storm-radar-watch/internal/config"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/geolocation"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/overlay"
	"github.com/couchcryptid/storm-radar-watch/internal/poller"
	"github.com/couchcryptid/storm-radar-watch/internal/session"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/couchcryptid/storm-radar-watch/internal/timeline"
	"github.com/jonboulle/clockwork"
)

const aircraftInterval = 10 * time.Second

// App owns every long-lived component.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	store    *store.Store
	player   *timeline.Controller
	client   *api.Client
	poller   *poller.Poller
	tracker  *geolocation.Tracker
	sessions *session.Manager
	prefs    *prefs.Store
	trails   *overlay.Trails
	notifier *alert.Notifier
	kafka    *kafkaadapter.Writer
	server   *httpadapter.Server
}

// New builds the application from cfg. clock may be nil for real time.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) (*App, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   store.New(cfg.ProximityRadiusKm),
		player:  timeline.New(timeline.WithClock(clock), timeline.WithInterval(cfg.PlaybackInterval)),
		client:  api.NewClient(cfg.APIBaseURL, cfg.APITimeout, metrics, logger),
	}

	p, err := prefs.Open(cfg.PrefsPath, logger)
	if err != nil {
		return nil, err
	}
	a.prefs = p
	if err := a.restorePrefs(); err != nil {
		a.Close()
		return nil, err
	}

	var src poller.Source = a.client
	if cfg.FallbackEnabled {
		fixture, err := fallback.LoadFixture()
		if err != nil {
			a.Close()
			return nil, err
		}
		src = fallback.NewSource(a.client, fixture, fallback.Options{Clock: clock}, metrics, logger)
	}
	a.poller = poller.New(src, a.store, logger, metrics,
		poller.WithClock(clock),
		poller.WithInterval(cfg.PollInterval),
		poller.WithReportHours(cfg.ReportHours),
	)

	if cfg.AircraftEnabled {
		a.trails = overlay.NewTrails(cfg.AircraftTrailPoints)
		sky := opensky.NewClient(cfg.AircraftURL, cfg.APITimeout)
		a.poller.AddFeed("aircraft", aircraftInterval, a.pollAircraft(sky))
		logger.Info("aircraft layer enabled", "url", cfg.AircraftURL, "trail_points", cfg.AircraftTrailPoints)
	}

	a.tracker = geolocation.NewTracker(a.locator(clock), a.store, a.client, clock,
		cfg.LocationRefreshInterval, logger, metrics)
	a.sessions = session.NewManager(a.client, a.prefs, a.store, logger)

	var publishers []alert.Publisher
	if cfg.AlertsToKafka() {
		a.kafka = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaAlertTopic, logger)
		publishers = append(publishers, a.kafka)
	}
	if cfg.PushAlertsEnabled {
		publishers = append(publishers, api.NewPushPublisher(a.client, a.store))
	}
	if len(publishers) > 0 {
		a.notifier = alert.NewNotifier(publishers, clock, cfg.AlertCooldown, logger, metrics)
	}

	a.store.Subscribe(a.onChange)
	a.player.OnChange(func(st timeline.State) {
		metrics.FeedOffline.Set(boolGauge(st.Offline))
	})

	a.server = httpadapter.NewServer(cfg.HTTPAddr, cfg.CORSOrigins, a, a.player, a.poller, metrics, logger)
	return a, nil
}

func (a *App) locator(clock clockwork.Clock) geolocation.Locator {
	var chain geolocation.Chain
	if a.cfg.StaticLat != nil && a.cfg.StaticLon != nil {
		chain = append(chain, geolocation.Static{Location: domain.UserLocation{Lat: *a.cfg.StaticLat, Lon: *a.cfg.StaticLon}})
	}
	if a.cfg.IPGeoEnabled {
		chain = append(chain, ipgeo.NewClient(a.cfg.IPGeoURL, clock))
	}
	if len(chain) == 0 {
		a.logger.Info("no location source configured; proximity checks disabled")
		return geolocation.Unsupported{}
	}
	return chain
}

func (a *App) restorePrefs() error {
	layer, err := a.prefs.MapLayer()
	if err != nil {
		return fmt.Errorf("restore map layer: %w", err)
	}
	if layer != "" {
		a.store.SetMapLayer(layer)
	}
	seen, err := a.prefs.TutorialSeen()
	if err != nil {
		return fmt.Errorf("restore tutorial flag: %w", err)
	}
	a.store.SetTutorialSeen(seen)
	return nil
}

// onChange keeps the timeline and gauges in step with the store.
func (a *App) onChange(c store.Change, snap store.Snapshot) {
	switch c {
	case store.ChangeImages:
		a.player.SetFrames(snap.Images.InputImages, snap.Images.PredictionImages)
		a.metrics.FramesObserved.Set(float64(len(snap.Images.InputImages)))
		a.metrics.FramesPredicted.Set(float64(len(snap.Images.PredictionImages)))
	case store.ChangeFetch:
		a.metrics.FetchError.Set(boolGauge(snap.FetchError))
	}
	if c == store.ChangeImages || c == store.ChangeLocation {
		if snap.Nearest != nil {
			a.metrics.NearestStormKm.Set(snap.Nearest.DistanceKm)
		} else {
			a.metrics.NearestStormKm.Set(-1)
		}
	}
}

// pollAircraft tracks aircraft inside the newest radar frame's footprint.
func (a *App) pollAircraft(sky *opensky.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		latest, ok := a.store.Snapshot().Images.LatestObserved()
		if !ok {
			return nil
		}
		aircraft, err := sky.States(ctx, latest.Bounds)
		if err != nil {
			return err
		}
		a.trails.Update(aircraft)
		return nil
	}
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// server fails, then shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.sessions.Restore(ctx); err != nil {
		a.logger.Warn("session restore failed", "error", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	a.player.Play()

	var wg sync.WaitGroup
	wg.Go(func() { _ = a.poller.Run(ctx) })
	wg.Go(func() { _ = a.player.Run(ctx) })
	wg.Go(func() { _ = a.tracker.Run(ctx) })
	if a.notifier != nil {
		wg.Go(func() { _ = a.notifier.Run(ctx, a.store) })
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()

	a.logger.Info("shutdown complete")
	return runErr
}

// Refresh polls the backend once and resolves the location once.
func (a *App) Refresh(ctx context.Context) error {
	pollErr := a.poller.PollOnce(ctx)
	if err := a.tracker.Refresh(ctx); err != nil {
		a.logger.Debug("location refresh failed", "error", err)
	}
	return pollErr
}

// Timeline returns the playback state.
func (a *App) Timeline() timeline.State {
	return a.player.State()
}

// Close releases persistent resources.
func (a *App) Close() error {
	var errs []error
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
		}
	}
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close prefs: %w", err))
		}
	}
	return errors.Join(errs...)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
