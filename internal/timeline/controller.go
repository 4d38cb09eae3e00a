// Package timeline presents observed and predicted radar frames as one
// ordered sequence with looping playback and smooth scrubbing.
package timeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-watch/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the playback cadence.
const DefaultInterval = 1500 * time.Millisecond

// State is a read-only view of the controller.
type State struct {
	Frames       []domain.Frame `json:"-"`
	Length       int            `json:"length"`
	InputCount   int            `json:"input_count"`
	Index        int            `json:"index"`
	Playing      bool           `json:"playing"`
	Dragging     bool           `json:"dragging"`
	DragValue    float64        `json:"drag_value"`
	IsPrediction bool           `json:"is_prediction"`
	Offline      bool           `json:"offline"`
	Current      *domain.Frame  `json:"current,omitempty"`
}

// Controller owns the timeline index. It is the only writer of the index and
// the playing flag; frames are supplied wholesale by SetFrames.
type Controller struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	interval    time.Duration
	input       []domain.Frame
	predictions []domain.Frame
	index       int
	playing     bool
	dragging    bool
	dragValue   float64
	offline     bool
	listeners   []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source used for playback and staleness.
func WithClock(c clockwork.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithInterval overrides the playback cadence.
func WithInterval(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.interval = d
		}
	}
}

// New creates a paused, empty controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to receive the state after every mutation.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetFrames replaces both frame lists. The index is reset to 0 if it no longer
// fits, and the offline flag is recomputed from the newest observed frame.
func (c *Controller) SetFrames(input, predictions []domain.Frame) {
	c.mutate(func() bool {
		c.input = input
		c.predictions = predictions
		if c.index >= c.lengthLocked() {
			c.index = 0
		}
		if c.dragValue > float64(max(c.lengthLocked()-1, 0)) {
			c.dragValue = float64(c.index)
		}
		c.offline = domain.IsOffline(domain.ImageSet{InputImages: input}, c.clock.Now())
		return true
	})
}

// Merged returns input frames followed by prediction frames, order preserved.
func (c *Controller) Merged() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

// IsPrediction reports whether position i holds a predicted frame.
func (c *Controller) IsPrediction(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return i >= len(c.input)
}

// Tick advances one frame if playing, wrapping to 0 after the last frame.
// It returns whether the index moved.
func (c *Controller) Tick() bool {
	moved := false
	c.mutate(func() bool {
		n := c.lengthLocked()
		if !c.playing || c.dragging || n == 0 {
			return false
		}
		c.index = (c.index + 1) % n
		c.dragValue = float64(c.index)
		moved = true
		return true
	})
	return moved
}

// Play starts looping playback.
func (c *Controller) Play() {
	c.mutate(func() bool {
		if c.playing {
			return false
		}
		c.playing = true
		return true
	})
}

// Pause stops playback.
func (c *Controller) Pause() {
	c.mutate(func() bool {
		if !c.playing {
			return false
		}
		c.playing = false
		return true
	})
}

// Toggle flips between playing and paused.
func (c *Controller) Toggle() {
	c.mutate(func() bool {
		c.playing = !c.playing
		return true
	})
}

// Seek jumps to frame i, clamped into range.
func (c *Controller) Seek(i int) {
	c.mutate(func() bool {
		c.index = c.clampLocked(i)
		c.dragValue = float64(c.index)
		return true
	})
}

// Step moves delta frames, wrapping around either end.
func (c *Controller) Step(delta int) {
	c.mutate(func() bool {
		n := c.lengthLocked()
		if n == 0 {
			return false
		}
		c.index = ((c.index+delta)%n + n) % n
		c.dragValue = float64(c.index)
		return true
	})
}

// JumpToNow moves to the newest observed frame.
func (c *Controller) JumpToNow() {
	c.mutate(func() bool {
		if len(c.input) == 0 {
			return false
		}
		c.index = len(c.input) - 1
		c.dragValue = float64(c.index)
		return true
	})
}

// BeginDrag starts a scrub gesture and pauses playback.
func (c *Controller) BeginDrag() {
	c.mutate(func() bool {
		c.dragging = true
		c.playing = false
		c.dragValue = float64(c.index)
		return true
	})
}

// Drag records the continuous slider position. The displayed frame changes
// only when the rounded value lands on a different index.
func (c *Controller) Drag(value float64) {
	c.mutate(func() bool {
		if !c.dragging {
			c.dragging = true
			c.playing = false
		}
		c.dragValue = c.clampValueLocked(value)
		c.index = int(math.Round(c.dragValue))
		return true
	})
}

// EndDrag commits the rounded drag value as the index.
func (c *Controller) EndDrag() {
	c.mutate(func() bool {
		c.index = int(math.Round(c.clampValueLocked(c.dragValue)))
		c.dragValue = float64(c.index)
		c.dragging = false
		return true
	})
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Run ticks on the playback cadence until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			c.Tick()
		}
	}
}

func (c *Controller) mutate(fn func() bool) {
	c.mu.Lock()
	if !fn() {
		c.mu.Unlock()
		return
	}
	st := c.stateLocked()
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}

func (c *Controller) stateLocked() State {
	frames := c.mergedLocked()
	st := State{
		Frames:       frames,
		Length:       len(frames),
		InputCount:   len(c.input),
		Index:        c.index,
		Playing:      c.playing,
		Dragging:     c.dragging,
		DragValue:    c.dragValue,
		IsPrediction: len(frames) > 0 && c.index >= len(c.input),
		Offline:      c.offline,
	}
	if c.index < len(frames) {
		f := frames[c.index]
		st.Current = &f
	}
	return st
}

func (c *Controller) mergedLocked() []domain.Frame {
	out := make([]domain.Frame, 0, len(c.input)+len(c.predictions))
	out = append(out, c.input...)
	return append(out, c.predictions...)
}

func (c *Controller) lengthLocked() int {
	return len(c.input) + len(c.predictions)
}

// clampValueLocked bounds a scrubber value to [0, len-1] before it is ever
// converted to an index. NaN is treated as 0.
func (c *Controller) clampValueLocked(v float64) float64 {
	n := c.lengthLocked()
	if n == 0 || math.IsNaN(v) {
		return 0
	}
	return max(0, min(v, float64(n-1)))
}

func (c *Controller) clampLocked(i int) int {
	n := c.lengthLocked()
	switch {
	case n == 0 || i < 0:
		return 0
	case i >= n:
		return n - 1
	default:
		return i
	}
}
