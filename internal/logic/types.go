// Package logic contains pure input-handling logic for the reset button.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the debounced state of the button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// EventType represents a button event.
type EventType string

const (
	EventPressed  EventType = "PRESSED"
	EventReleased EventType = "RELEASED"
	// EventHold fires once per press when the button has been held for
	// the hold duration.
	EventHold EventType = "HOLD"
)

// Event is one detected button event.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Held is how long the button had been down, for HOLD and RELEASED.
	Held time.Duration
}

// ChannelState tracks debounce state for the input line.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of the button.
type Input struct {
	Pressed bool // already inverted from the active-low line
	Time    time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Presses int
	Holds   int
}
