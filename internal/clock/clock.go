// Package clock keeps device wall-clock time anchored to a network time
// source. A successful sync records an (iso timestamp, tick) anchor; Now
// projects the anchor forward with the tick counter, so RTC jumps between
// syncs do not affect it.
package clock

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sweeney/eth-sensor/internal/device"
	"github.com/sweeney/eth-sensor/internal/metrics"
)

// Anchor pairs a network-confirmed timestamp with the tick at which it was
// received. Timestamp and Tick are always set together.
type Anchor struct {
	Timestamp string
	Tick      uint32
	Valid     bool
}

// LinkChecker reports whether the network link is up.
type LinkChecker interface {
	IsConnected() bool
}

// Options configures a Clock. Zero durations and counts take defaults.
type Options struct {
	URL           string
	OffsetSeconds int
	MaxAttempts   int
	RetryDelay    time.Duration
	Interval      time.Duration
	Timeout       time.Duration

	Ticks      TickSource
	RTC        func() time.Time
	HTTPClient *http.Client
	Link       LinkChecker
	Restarter  device.Restarter
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Clock is the clock synchronization service.
type Clock struct {
	opts   Options
	anchor atomic.Pointer[Anchor]
	synced atomic.Bool

	// elapsed accumulates tick deltas since New so uptime survives
	// counter wraparound. It must be folded at least once per wrap period;
	// every SyncRound and Uptime call does so.
	tickMu   sync.Mutex
	lastTick uint32
	elapsed  uint64

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// New creates a Clock with an invalid anchor.
func New(opts Options) *Clock {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Ticks == nil {
		opts.Ticks = NewMonotonicTicks()
	}
	if opts.RTC == nil {
		opts.RTC = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Clock{
		opts:     opts,
		lastTick: opts.Ticks.Ticks(),
	}
	c.anchor.Store(&Anchor{})
	return c
}

// Now returns the current local timestamp in Layout.
func (c *Clock) Now() string {
	a := c.anchor.Load()
	if !a.Valid {
		return Format(c.opts.RTC(), c.opts.OffsetSeconds)
	}
	return c.AddMillis(a.Timestamp, TickDiff(c.opts.Ticks.Ticks(), a.Tick))
}

// Uptime returns time elapsed since the Clock was created.
func (c *Clock) Uptime() time.Duration {
	return time.Duration(c.foldTicks()) * time.Millisecond
}

// foldTicks adds the ticks elapsed since the last fold and returns the
// running total in milliseconds.
func (c *Clock) foldTicks() uint64 {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	now := c.opts.Ticks.Ticks()
	c.elapsed += uint64(TickDiff(now, c.lastTick))
	c.lastTick = now
	return c.elapsed
}

// Anchor returns the current anchor.
func (c *Clock) Anchor() Anchor {
	return *c.anchor.Load()
}

// Synced reports whether the last sync attempt succeeded.
func (c *Clock) Synced() bool {
	return c.synced.Load()
}

// ParseTimestamp parses s, logging and returning the zero DateTime when
// it is malformed.
func (c *Clock) ParseTimestamp(s string) DateTime {
	d, err := Parse(s)
	if err != nil {
		c.opts.Logger.Error("could not parse timestamp", "value", s, "error", err)
	}
	return d
}

// AddMillis advances timestamp ts by the whole seconds contained in ms.
func (c *Clock) AddMillis(ts string, ms uint32) string {
	return addMillis(c.ParseTimestamp(ts), ms)
}
