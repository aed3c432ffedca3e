// Package metrics records daemon counters. Components take a Recorder;
// Noop is the default so callers never need nil checks.
package metrics

// Recorder is implemented by Noop and Prometheus.
type Recorder interface {
	// SyncAttempt counts one time sync attempt; result is "ok", "error" or "link_down".
	SyncAttempt(result string)
	// Restart counts an escalation to device restart.
	Restart()
	// Publish counts one publish; result is "ok", "not_ready" or "error".
	Publish(result string)
	// InboundDropped counts inbound messages discarded by the queue.
	InboundDropped()
	// Command counts a handled inbound command.
	Command(name string)
	// SessionState records the messaging session state as a number.
	SessionState(state int)
}

// Noop discards everything.
type Noop struct{}

func (Noop) SyncAttempt(string) {}
func (Noop) Restart()           {}
func (Noop) Publish(string)     {}
func (Noop) InboundDropped()    {}
func (Noop) Command(string)     {}
func (Noop) SessionState(int)   {}

var _ Recorder = Noop{}
