// Package status provides a thread-safe status tracker for the eth-sensor daemon.
// It is read by the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/eth-sensor/internal/logic"
)

// NetworkInfo contains link state. This is a local copy to avoid
// importing internal/link from status.
type NetworkInfo struct {
	Type    string
	IP      string
	Status  string
	Gateway string
	MAC     string
}

// SessionInfo is the messaging session as last observed.
type SessionInfo struct {
	State       string
	Ready       bool
	Connected   bool
	ClientID    string
	StatusTopic string
}

// ClockInfo is the clock service as last observed.
type ClockInfo struct {
	Synced     bool
	Now        string
	AnchorTime string
	AnchorTick uint32
	Uptime     time.Duration
}

// ButtonInfo is the reset button as last observed.
type ButtonInfo struct {
	Enabled   bool
	State     logic.State
	Baselined bool
	Counts    logic.EventCounts
	LastReset time.Time
}

// Config contains daemon configuration for display.
type Config struct {
	Broker           string
	HTTPAddr         string
	ClockURL         string
	SyncInterval     time.Duration
	LivenessInterval time.Duration
	CommandTopic     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Session   SessionInfo
	Clock     ClockInfo
	Button    ButtonInfo
	StartTime time.Time
	Now       time.Time
	Network   *NetworkInfo
	Config    Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Session:   SessionInfo{State: "DISCONNECTED"},
		},
	}
}

// SetSession records the messaging session state.
func (t *Tracker) SetSession(info SessionInfo) {
	t.mu.Lock()
	t.snap.Session = info
	t.mu.Unlock()
}

// SetClock records the clock service state.
func (t *Tracker) SetClock(info ClockInfo) {
	t.mu.Lock()
	t.snap.Clock = info
	t.mu.Unlock()
}

// UpdateButton sets the debounced button state and counts.
// Called from the button loop on every poll.
func (t *Tracker) UpdateButton(state logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Button.Enabled = true
	t.snap.Button.State = state
	t.snap.Button.Baselined = baselined
	t.snap.Button.Counts = counts
	t.mu.Unlock()
}

// RecordConfigReset notes when the button last reset the stores.
func (t *Tracker) RecordConfigReset(at time.Time) {
	t.mu.Lock()
	t.snap.Button.LastReset = at
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
