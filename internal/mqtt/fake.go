package mqtt

import (
	"context"
	"sync"
)

// Published is one publish recorded by FakeTransport.
type Published struct {
	Topic   string
	QoS     byte
	Retain  bool
	Payload []byte
}

// FakeTransport records session traffic for test assertions. A successful
// Connect signals Up unless ManualUp is set.
type FakeTransport struct {
	mu sync.Mutex

	// ConnectErrs are returned by successive Connect calls; once exhausted
	// Connect succeeds.
	ConnectErrs []error

	// SubscribeErrs maps a topic to the error Subscribe returns for it.
	SubscribeErrs map[string]error

	// PublishErr, if set, is returned by Publish.
	PublishErr error

	// ManualUp stops Connect from signalling Up by itself.
	ManualUp bool

	connects   int
	subscribes []string
	publishes  []Published
	connected  bool
	closed     bool
	handler    func(Message)

	up   chan struct{}
	down chan struct{}
}

// NewFakeTransport creates a FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		SubscribeErrs: make(map[string]error),
		up:            make(chan struct{}, 1),
		down:          make(chan struct{}, 1),
	}
}

func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	if len(f.ConnectErrs) > 0 {
		err := f.ConnectErrs[0]
		f.ConnectErrs = f.ConnectErrs[1:]
		if err != nil {
			f.mu.Unlock()
			return err
		}
	}
	manual := f.ManualUp
	f.mu.Unlock()

	if !manual {
		f.SignalUp()
	}
	return nil
}

func (f *FakeTransport) Subscribe(ctx context.Context, topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, topic)
	return f.SubscribeErrs[topic]
}

func (f *FakeTransport) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.publishes = append(f.publishes, Published{
		Topic:   topic,
		QoS:     qos,
		Retain:  retain,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

func (f *FakeTransport) Up() <-chan struct{} { return f.up }

func (f *FakeTransport) Down() <-chan struct{} { return f.down }

func (f *FakeTransport) SetMessageHandler(h func(Message)) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.connected = false
	f.mu.Unlock()
	return nil
}

// SignalUp simulates the connection coming up.
func (f *FakeTransport) SignalUp() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.up <- struct{}{}
}

// SignalDown simulates a lost connection.
func (f *FakeTransport) SignalDown() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.down <- struct{}{}
}

// Inject delivers an inbound message as the transport callback would.
func (f *FakeTransport) Inject(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(Message{Topic: topic, Payload: payload})
	}
}

// Connects returns the number of Connect calls.
func (f *FakeTransport) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Subscribes returns the topics passed to Subscribe, in order.
func (f *FakeTransport) Subscribes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribes...)
}

// Publishes returns the recorded publishes, in order.
func (f *FakeTransport) Publishes() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.publishes...)
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded traffic.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = nil
	f.publishes = nil
	f.PublishErr = nil
}
