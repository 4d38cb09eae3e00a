// Package poller keeps the store in sync with the backend. Each resource is
// polled on its own goroutine so a slow or failing endpoint never delays or
// corrupts another, and a resource never has more than one request in flight.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Backend resource names, also used as metric labels and fetch-error keys.
const (
	ResourceStatus  = "status"
	ResourceImages  = "images"
	ResourceReports = "reports"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultReportHours = 24
)

// Source fetches the three backend resources.
type Source interface {
	Status(ctx context.Context) (domain.Status, error)
	Images(ctx context.Context) (domain.ImageSet, error)
	Reports(ctx context.Context, hours int) ([]domain.WeatherReport, error)
}

// Sink receives committed results. Only the poller writes these parts of the state.
type Sink interface {
	SetStatus(domain.Status)
	SetImages(domain.ImageSet)
	SetReports([]domain.WeatherReport)
	SetFetchError(resource string, err error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock injects the time source for tickers.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithInterval sets the poll period shared by the backend resources.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithReportHours sets the look-back window for reports.
func WithReportHours(h int) Option {
	return func(p *Poller) {
		if h > 0 {
			p.reportHours = h
		}
	}
}

type task struct {
	name     string
	interval time.Duration
	poll     func(ctx context.Context) error
}

// Poller drives the periodic backend fetches.
type Poller struct {
	src         Source
	sink        Sink
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	interval    time.Duration
	reportHours int

	tasks []task
	ready atomic.Bool
}

// New creates a Poller for the status, images and reports resources.
func New(src Source, sink Sink, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Poller {
	p := &Poller{
		src:         src,
		sink:        sink,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		interval:    DefaultInterval,
		reportHours: DefaultReportHours,
	}
	for _, o := range opts {
		o(p)
	}

	p.tasks = []task{
		{name: ResourceStatus, interval: p.interval, poll: tracked(p, ResourceStatus, src.Status, sink.SetStatus)},
		{name: ResourceImages, interval: p.interval, poll: tracked(p, ResourceImages, src.Images, sink.SetImages)},
		{name: ResourceReports, interval: p.interval, poll: tracked(p, ResourceReports, func(ctx context.Context) ([]domain.WeatherReport, error) {
			return src.Reports(ctx, p.reportHours)
		}, sink.SetReports)},
	}
	return p
}

// AddFeed registers an auxiliary feed polled every interval. Its failures are
// logged and counted but do not raise the backend fetch-error flag. Must be
// called before Run.
func (p *Poller) AddFeed(name string, interval time.Duration, poll func(ctx context.Context) error) {
	if interval <= 0 {
		interval = p.interval
	}
	p.tasks = append(p.tasks, task{name: name, interval: interval, poll: poll})
}

// tracked adapts a fetch into a poll that commits its own resource. Degraded
// results carry usable data, so they are committed and flagged at once.
func tracked[T any](p *Poller, name string, fetch func(context.Context) (T, error), commit func(T)) func(context.Context) error {
	return func(ctx context.Context) error {
		v, err := fetch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, domain.ErrDegraded) {
			commit(v)
		}
		p.sink.SetFetchError(name, err)
		return err
	}
}

// CheckReadiness returns nil once any backend resource has been fetched
// successfully.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful backend poll yet")
	}
	return nil
}

// Run polls every task immediately and then on its interval until ctx is
// cancelled. Results that arrive after cancellation are discarded.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval, "report_hours", p.reportHours, "tasks", len(p.tasks))

	var wg sync.WaitGroup
	for _, t := range p.tasks {
		wg.Go(func() { p.loop(ctx, t) })
	}
	wg.Wait()

	p.logger.Info("poller stopped", "reason", ctx.Err())
	return nil
}

// PollOnce fetches every task once, concurrently, and returns the joined errors.
func (p *Poller) PollOnce(ctx context.Context) error {
	errs := make([]error, len(p.tasks))
	var wg sync.WaitGroup
	for i, t := range p.tasks {
		wg.Go(func() { errs[i] = p.pollTask(ctx, t) })
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (p *Poller) loop(ctx context.Context, t task) {
	ticker := p.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		_ = p.pollTask(ctx, t)

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// pollTask runs one poll of t and records its outcome.
func (p *Poller) pollTask(ctx context.Context, t task) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	err := t.poll(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.metrics.PollDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		p.metrics.PollRequests.WithLabelValues(t.name, "success").Inc()
		if isBackend(t.name) {
			p.ready.Store(true)
		}
	case errors.Is(err, domain.ErrDegraded):
		p.metrics.PollRequests.WithLabelValues(t.name, "fallback").Inc()
		p.logger.Warn("poll served fallback data", "resource", t.name, "error", err)
	default:
		p.metrics.PollRequests.WithLabelValues(t.name, "error").Inc()
		p.logger.Warn("poll failed", "resource", t.name, "error", err)
	}
	return err
}

func isBackend(name string) bool {
	switch name {
	case ResourceStatus, ResourceImages, ResourceReports:
		return true
	}
	return false
}
