// Package mqtt runs the device's publish/subscribe session: connection
// state machine, readiness-gated publishing, the liveness beacon and
// in-order dispatch of inbound messages. The Transport abstraction lets
// tests run the session without a broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotReady is returned by Publish when the session is not Ready.
var ErrNotReady = errors.New("mqtt session not ready")

// State is the session's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Message is an inbound publish.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Transport is the connection the session drives. Implementations
// serialize their own operations and are safe to call from several
// goroutines.
type Transport interface {
	// Connect performs one connect handshake.
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
	// Up delivers a value each time the connection comes up.
	Up() <-chan struct{}
	// Down delivers a value each time the connection is lost.
	Down() <-chan struct{}
	// SetMessageHandler installs the inbound callback. It must not block.
	SetMessageHandler(func(Message))
	IsConnected() bool
	Close() error
}

// Handler processes one decoded inbound message.
type Handler interface {
	HandleMessage(ctx context.Context, topic, payload string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, topic, payload string) error

func (f HandlerFunc) HandleMessage(ctx context.Context, topic, payload string) error {
	return f(ctx, topic, payload)
}

// StatusClock supplies timestamps for status payloads.
type StatusClock interface {
	Now() string
	Uptime() time.Duration
}

// Status values carried on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusPayload is published on the status topic and registered as the
// last will. Timestamp and uptime are only present on online beacons.
type StatusPayload struct {
	Status        string `json:"status"`
	MAC           string `json:"mac"`
	Timestamp     string `json:"timestamp,omitempty"`
	UptimeSeconds *int64 `json:"uptime_seconds,omitempty"`
}

// MarshalJSON encodes an unknown hardware address as null.
func (p StatusPayload) MarshalJSON() ([]byte, error) {
	var mac *string
	if p.MAC != "" {
		mac = &p.MAC
	}
	return json.Marshal(struct {
		Status        string  `json:"status"`
		MAC           *string `json:"mac"`
		Timestamp     string  `json:"timestamp,omitempty"`
		UptimeSeconds *int64  `json:"uptime_seconds,omitempty"`
	}{p.Status, mac, p.Timestamp, p.UptimeSeconds})
}

// FormatStatus builds the status payload. clk may be nil.
func FormatStatus(status, mac string, clk StatusClock) StatusPayload {
	p := StatusPayload{Status: status, MAC: mac}
	if clk != nil && status == StatusOnline {
		p.Timestamp = clk.Now()
		up := int64(clk.Uptime().Truncate(time.Second).Seconds())
		p.UptimeSeconds = &up
	}
	return p
}

// encodePayload serializes v as JSON. Byte slices and json.RawMessage are
// sent as-is.
func encodePayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return data, nil
	}
}
