package timeline_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/couchcryptid/storm-radar-watch/internal/timeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(prefix string, n int) []domain.Frame {
	out := make([]domain.Frame, n)
	for i := range out {
		out[i] = domain.Frame{URL: fmt.Sprintf("%s-%d.png", prefix, i)}
	}
	return out
}

func TestController_MergedPreservesOrder(t *testing.T) {
	c := timeline.New()
	input := []domain.Frame{{URL: "b.png"}, {URL: "a.png"}}
	preds := []domain.Frame{{URL: "z.png"}, {URL: "y.png"}}
	c.SetFrames(input, preds)

	want := []string{"b.png", "a.png", "z.png", "y.png"}
	var got []string
	for _, f := range c.Merged() {
		got = append(got, f.URL)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged order mismatch (-want +got):\n%s", diff)
	}
}

func TestController_IsPrediction(t *testing.T) {
	for _, tc := range []struct{ input, preds int }{{1, 0}, {3, 2}, {0, 4}, {6, 6}} {
		t.Run(fmt.Sprintf("%d+%d", tc.input, tc.preds), func(t *testing.T) {
			c := timeline.New()
			c.SetFrames(frames("in", tc.input), frames("pred", tc.preds))
			for i := 0; i < tc.input+tc.preds; i++ {
				assert.Equal(t, i >= tc.input, c.IsPrediction(i), "index %d", i)
			}
		})
	}
}

func TestController_TickWrapsAtEnd(t *testing.T) {
	for n := 1; n <= 5; n++ {
		c := timeline.New()
		c.SetFrames(frames("in", n), nil)
		c.Seek(n - 1)
		c.Play()

		assert.True(t, c.Tick())
		assert.Equal(t, 0, c.State().Index, "length %d", n)
	}
}

func TestController_TickRequiresPlayingAndFrames(t *testing.T) {
	c := timeline.New()
	c.Play()
	assert.False(t, c.Tick(), "empty list never advances")
	assert.Equal(t, 0, c.State().Index)

	c.SetFrames(frames("in", 3), nil)
	c.Pause()
	assert.False(t, c.Tick())
	assert.Equal(t, 0, c.State().Index)

	c.Play()
	assert.True(t, c.Tick())
	assert.Equal(t, 1, c.State().Index)
}

func TestController_ScrubCommitRounds(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 4), frames("pred", 2))
	c.Play()

	c.BeginDrag()
	st := c.State()
	assert.False(t, st.Playing, "drag pauses playback")
	assert.True(t, st.Dragging)

	c.Drag(2.4)
	assert.Equal(t, 2, c.State().Index)
	assert.InDelta(t, 2.4, c.State().DragValue, 1e-9)

	c.Drag(2.73)
	assert.Equal(t, 3, c.State().Index, "display switches once rounding crosses the boundary")

	c.EndDrag()
	st = c.State()
	assert.Equal(t, 3, st.Index)
	assert.False(t, st.Dragging)
	assert.False(t, st.Playing)
}

func TestController_ScrubClampsOutOfRange(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 3), nil)

	c.BeginDrag()
	c.Drag(7.8)
	c.EndDrag()
	assert.Equal(t, 2, c.State().Index)

	c.BeginDrag()
	c.Drag(-1.2)
	c.EndDrag()
	assert.Equal(t, 0, c.State().Index)
}

func TestController_ScrubClampsValuesBeyondIntRange(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 3), frames("pred", 2))

	c.BeginDrag()
	c.Drag(1e20)
	assert.Equal(t, 4, c.State().Index)
	assert.Equal(t, 4.0, c.State().DragValue)
	c.EndDrag()
	assert.Equal(t, 4, c.State().Index)

	c.BeginDrag()
	c.Drag(-1e20)
	c.EndDrag()
	assert.Equal(t, 0, c.State().Index)

	c.BeginDrag()
	c.Drag(math.NaN())
	assert.Equal(t, 0.0, c.State().DragValue)
	c.EndDrag()
	assert.Equal(t, 0, c.State().Index)
}

func TestController_TickIgnoredWhileDragging(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 3), nil)
	c.BeginDrag()
	c.Play()

	assert.False(t, c.Tick())
}

func TestController_ResizeResetsIndex(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 6), frames("pred", 4))
	c.Seek(9)
	require.Equal(t, 9, c.State().Index)

	c.SetFrames(frames("in", 3), frames("pred", 2))
	assert.Equal(t, 0, c.State().Index)
}

func TestController_ResizeKeepsIndexThatStillFits(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 6), nil)
	c.Seek(3)

	c.SetFrames(frames("in", 5), frames("pred", 1))
	assert.Equal(t, 3, c.State().Index)
}

func TestController_StepAndJumpToNow(t *testing.T) {
	c := timeline.New()
	c.SetFrames(frames("in", 3), frames("pred", 2))

	c.Step(-1)
	assert.Equal(t, 4, c.State().Index)
	assert.True(t, c.State().IsPrediction)

	c.JumpToNow()
	assert.Equal(t, 2, c.State().Index)
	assert.False(t, c.State().IsPrediction)
	assert.Equal(t, "in-2.png", c.State().Current.URL)
}

func TestController_OfflineRecomputedOnFrameChange(t *testing.T) {
	now := time.Date(2025, time.June, 1, 14, 30, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	c := timeline.New(timeline.WithClock(clock))

	c.SetFrames([]domain.Frame{{TargetTime: now.Add(-16 * time.Minute).Format(time.RFC3339)}}, nil)
	assert.True(t, c.State().Offline)

	c.SetFrames([]domain.Frame{{TargetTime: now.Add(-14 * time.Minute).Format(time.RFC3339)}}, nil)
	assert.False(t, c.State().Offline)

	// Staleness is not re-evaluated on a timer.
	clock.Advance(time.Hour)
	assert.False(t, c.State().Offline)
}

func TestController_OnChangeReceivesState(t *testing.T) {
	c := timeline.New()
	var seen []int
	c.OnChange(func(st timeline.State) { seen = append(seen, st.Index) })

	c.SetFrames(frames("in", 3), nil)
	c.Seek(2)
	c.Pause() // already paused, no notification

	assert.Equal(t, []int{0, 2}, seen)
}

func TestController_RunAdvancesOnCadence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := timeline.New(timeline.WithClock(clock), timeline.WithInterval(timeline.DefaultInterval))
	c.SetFrames(frames("in", 2), nil)
	c.Play()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(timeline.DefaultInterval)
	assert.Eventually(t, func() bool { return c.State().Index == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(timeline.DefaultInterval)
	assert.Eventually(t, func() bool { return c.State().Index == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
