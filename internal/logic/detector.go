package logic

import "time"

// HoldDetector debounces the button and detects long presses.
type HoldDetector struct {
	debounceDuration time.Duration
	holdDuration     time.Duration
	ch               ChannelState
	pressedAt        time.Time
	fired            bool
	eventCounts      EventCounts
}

// NewHoldDetector creates a detector that fires EventHold once the button
// has been stably pressed for hold.
func NewHoldDetector(debounceDuration, hold time.Duration) *HoldDetector {
	return &HoldDetector{
		debounceDuration: debounceDuration,
		holdDuration:     hold,
	}
}

// Process takes a new input sample and returns any events that should be
// emitted. Nothing is emitted until a baseline is established, so a button
// already held at startup never fires.
func (d *HoldDetector) Process(input Input) []Event {
	state := boolToState(input.Pressed)

	if !d.ch.Baselined {
		d.baseline(state, input.Time)
		return nil
	}

	var events []Event
	if transition, since := d.processChannel(state, input.Time); transition != nil {
		switch *transition {
		case EventPressed:
			d.pressedAt = since
			d.fired = false
			d.eventCounts.Presses++
			events = append(events, Event{Timestamp: input.Time, Type: EventPressed})
		case EventReleased:
			events = append(events, Event{
				Timestamp: input.Time,
				Type:      EventReleased,
				Held:      since.Sub(d.pressedAt),
			})
			d.pressedAt = time.Time{}
		}
	}

	if d.ch.Stable == StatePressed && !d.pressedAt.IsZero() && !d.fired {
		if held := input.Time.Sub(d.pressedAt); held >= d.holdDuration {
			d.fired = true
			d.eventCounts.Holds++
			events = append(events, Event{Timestamp: input.Time, Type: EventHold, Held: held})
		}
	}

	return events
}

func (d *HoldDetector) baseline(state State, now time.Time) {
	ch := &d.ch
	if ch.Pending != state {
		// First sample, or state changed during baseline: restart
		ch.Pending = state
		ch.PendingSince = now
		return
	}
	if now.Sub(ch.PendingSince) >= d.debounceDuration {
		ch.Stable = state
		ch.Baselined = true
		ch.Pending = ""
	}
}

// processChannel handles debounce logic once baselined. It returns the
// event type if a transition occurred, and when the new state was first
// observed.
func (d *HoldDetector) processChannel(state State, now time.Time) (*EventType, time.Time) {
	ch := &d.ch
	if state == ch.Stable {
		// No change from stable state, clear any pending
		ch.Pending = ""
		return nil, time.Time{}
	}

	if ch.Pending != state {
		ch.Pending = state
		ch.PendingSince = now
		return nil, time.Time{}
	}

	// Same pending state, check debounce
	if now.Sub(ch.PendingSince) >= d.debounceDuration {
		since := ch.PendingSince
		ch.Stable = state
		ch.Pending = ""
		return eventTypeForTransition(state), since
	}
	return nil, time.Time{}
}

func boolToState(b bool) State {
	if b {
		return StatePressed
	}
	return StateReleased
}

func eventTypeForTransition(to State) *EventType {
	event := EventReleased
	if to == StatePressed {
		event = EventPressed
	}
	return &event
}

// IsBaselined returns whether the detector has established a baseline.
func (d *HoldDetector) IsBaselined() bool {
	return d.ch.Baselined
}

// CurrentState returns the current stable state.
func (d *HoldDetector) CurrentState() State {
	return d.ch.Stable
}

// Counts returns the events seen since startup.
func (d *HoldDetector) Counts() EventCounts {
	return d.eventCounts
}
