package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/observability"
	"github.com/couchcryptid/storm-radar-watch/internal/poller"
	"github.com/couchcryptid/storm-radar-watch/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeSource struct {
	mu         sync.Mutex
	status     domain.Status
	images     domain.ImageSet
	reports    []domain.WeatherReport
	imagesErr  error
	hours      int
	statusHits atomic.Int32
	imageHits  atomic.Int32
}

func (f *fakeSource) Status(context.Context) (domain.Status, error) {
	f.statusHits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeSource) Images(context.Context) (domain.ImageSet, error) {
	f.imageHits.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images, f.imagesErr
}

func (f *fakeSource) Reports(_ context.Context, hours int) ([]domain.WeatherReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hours = hours
	return f.reports, nil
}

func (f *fakeSource) setImagesErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagesErr = err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frames(times ...string) []domain.Frame {
	out := make([]domain.Frame, len(times))
	for i, ts := range times {
		out[i] = domain.Frame{URL: "/img/" + ts, TargetTime: ts}
	}
	return out
}

// --- tests ---

func TestPoller_PollOnceCommitsEachResource(t *testing.T) {
	src := &fakeSource{
		status:  domain.Status{Status: "running"},
		images:  domain.ImageSet{InputImages: frames("a", "b"), PredictionImages: frames("c")},
		reports: []domain.WeatherReport{{ID: "r1"}},
	}
	st := store.New(0)
	p := poller.New(src, st, quietLogger(), observability.NewMetricsForTesting(), poller.WithReportHours(6))

	require.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.PollOnce(context.Background()))
	require.NoError(t, p.CheckReadiness(context.Background()))

	snap := st.Snapshot()
	require.NotNil(t, snap.Status)
	assert.Equal(t, "running", snap.Status.Status)
	assert.Len(t, snap.Images.InputImages, 2)
	assert.Len(t, snap.Images.PredictionImages, 1)
	assert.Len(t, snap.Reports, 1)
	assert.Equal(t, 6, src.hours)
	assert.False(t, snap.FetchError)
}

func TestPoller_FailureKeepsStateAndIsolatesResources(t *testing.T) {
	src := &fakeSource{
		status: domain.Status{Status: "running"},
		images: domain.ImageSet{InputImages: frames("a")},
	}
	st := store.New(0)
	metrics := observability.NewMetricsForTesting()
	p := poller.New(src, st, quietLogger(), metrics)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))

	src.mu.Lock()
	src.status = domain.Status{Status: "buffering"}
	src.images = domain.ImageSet{}
	src.imagesErr = errors.New("boom")
	src.mu.Unlock()

	err := p.PollOnce(ctx)
	require.Error(t, err)

	snap := st.Snapshot()
	assert.True(t, snap.FetchError)
	assert.Contains(t, snap.FetchErrors, poller.ResourceImages)
	assert.Len(t, snap.Images.InputImages, 1, "previous frames retained")
	assert.Equal(t, "buffering", snap.Status.Status, "other resources still commit")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PollRequests.WithLabelValues(poller.ResourceImages, "error")))

	src.setImagesErr(nil)
	require.NoError(t, p.PollOnce(ctx))
	assert.False(t, st.Snapshot().FetchError)
}

func TestPoller_DegradedResultIsCommittedAndFlagged(t *testing.T) {
	src := &fakeSource{
		images:    domain.ImageSet{InputImages: frames("fallback")},
		imagesErr: errors.Join(domain.ErrDegraded, errors.New("down")),
	}
	st := store.New(0)
	metrics := observability.NewMetricsForTesting()
	p := poller.New(src, st, quietLogger(), metrics)

	_ = p.PollOnce(context.Background())

	snap := st.Snapshot()
	assert.True(t, snap.FetchError)
	require.Len(t, snap.Images.InputImages, 1)
	assert.Equal(t, "fallback", snap.Images.InputImages[0].TargetTime)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PollRequests.WithLabelValues(poller.ResourceImages, "fallback")))
}

func TestPoller_FeedErrorsDoNotRaiseFetchFlag(t *testing.T) {
	st := store.New(0)
	p := poller.New(&fakeSource{}, st, quietLogger(), observability.NewMetricsForTesting())

	var calls atomic.Int32
	p.AddFeed("aircraft", time.Second, func(context.Context) error {
		calls.Add(1)
		return errors.New("rate limited")
	})

	err := p.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, st.Snapshot().FetchError)
}

func TestPoller_RunPollsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	p := poller.New(src, store.New(0), quietLogger(), observability.NewMetricsForTesting(),
		poller.WithClock(clock), poller.WithInterval(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Immediate first poll.
	require.Eventually(t, func() bool { return src.statusHits.Load() == 1 }, time.Second, 5*time.Millisecond)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 3))

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool {
		return src.statusHits.Load() == 2 && src.imageHits.Load() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestPoller_NoOverlapWhileRequestInFlight(t *testing.T) {
	clock := clockwork.NewFakeClock()
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32

	src := &blockingSource{
		fakeSource: &fakeSource{},
		images: func() {
			n := inFlight.Add(1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
		},
	}
	p := poller.New(src, store.New(0), quietLogger(), observability.NewMetricsForTesting(),
		poller.WithClock(clock), poller.WithInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)
	for range 5 {
		clock.Advance(time.Second)
	}
	assert.Equal(t, int32(1), maxInFlight.Load())

	close(release)
	cancel()
	<-done
	assert.Equal(t, int32(1), maxInFlight.Load())
}

type blockingSource struct {
	*fakeSource
	images func()
}

func (b *blockingSource) Images(ctx context.Context) (domain.ImageSet, error) {
	b.images()
	return domain.ImageSet{}, nil
}

// A 500 on the images endpoint sets the error flag and keeps the previous
// frames; the next successful response replaces them and clears the flag.
func TestPoller_BackendErrorThenRecovery(t *testing.T) {
	var fail atomic.Bool
	var second atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status":
			_, _ = w.Write([]byte(`{"status":"running"}`))
		case "/api/reports":
			_, _ = w.Write([]byte(`[]`))
		case "/api/images":
			if fail.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if second.Load() {
				_, _ = w.Write([]byte(`{"input_images":[{"url":"/new.png","bounds":[[0,0],[1,1]]}],"prediction_images":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"input_images":[{"url":"/old.png","bounds":[[0,0],[1,1]]}],"prediction_images":[]}`))
		}
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	client := api.NewClient(srv.URL, time.Second, metrics, quietLogger())
	st := store.New(0)
	p := poller.New(client, st, quietLogger(), metrics)
	ctx := context.Background()

	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, "/old.png", st.Snapshot().Images.InputImages[0].URL)

	fail.Store(true)
	require.Error(t, p.PollOnce(ctx))
	snap := st.Snapshot()
	assert.True(t, snap.FetchError)
	assert.Equal(t, "/old.png", snap.Images.InputImages[0].URL)

	fail.Store(false)
	second.Store(true)
	require.NoError(t, p.PollOnce(ctx))
	snap = st.Snapshot()
	assert.False(t, snap.FetchError)
	assert.Equal(t, "/new.png", snap.Images.InputImages[0].URL)
}
