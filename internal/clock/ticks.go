package clock

import "time"

// TickSource is a free-running millisecond counter that wraps at 2^32.
// It is immune to wall-clock adjustments.
type TickSource interface {
	Ticks() uint32
}

// TickDiff returns the milliseconds elapsed from then to now. Unsigned
// subtraction makes it correct across one counter wraparound, so anchors
// must be refreshed more often than every ~49.7 days.
func TickDiff(now, then uint32) uint32 {
	return now - then
}

// MonotonicTicks derives ticks from Go's monotonic clock.
type MonotonicTicks struct {
	start time.Time
}

// NewMonotonicTicks starts a counter at zero.
func NewMonotonicTicks() *MonotonicTicks {
	return &MonotonicTicks{start: time.Now()}
}

// Ticks returns milliseconds since start, truncated to 32 bits.
func (m *MonotonicTicks) Ticks() uint32 {
	return uint32(time.Since(m.start).Milliseconds())
}
