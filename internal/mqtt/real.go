package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// TransportConfig describes how to reach the broker.
type TransportConfig struct {
	Broker      string // tcp://host:port
	ClientID    string
	Username    string
	Password    string
	KeepAlive   time.Duration
	WillTopic   string
	WillPayload []byte
	Timeout     time.Duration // per-operation wait, default 10s
}

// BrokerURL builds the broker address from host and port.
func BrokerURL(host string, port int) string {
	if port <= 0 {
		port = 1883
	}
	return fmt.Sprintf("tcp://%s:%d", host, port)
}

// RealTransport drives a paho client. Reconnects after the first
// successful connect are left to paho's auto-reconnect. Inbound messages
// reach the handler on paho's router goroutine in arrival order, so the
// handler must not block.
type RealTransport struct {
	client  paho.Client
	timeout time.Duration
	logger  *slog.Logger
	up      chan struct{}
	down    chan struct{}

	mu      sync.RWMutex
	handler func(Message)
}

// NewRealTransport builds the client with the retained offline will
// registered at qos 1. It does not connect.
func NewRealTransport(cfg TransportConfig, logger *slog.Logger) *RealTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &RealTransport{
		timeout: cfg.Timeout,
		logger:  logger,
		up:      make(chan struct{}, 1),
		down:    make(chan struct{}, 1),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(cfg.Timeout).
		SetOrderMatters(true).
		SetOnConnectHandler(func(paho.Client) {
			signal(t.up)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			t.logger.Warn("mqtt connection lost", "error", err)
			signal(t.down)
		}).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			t.logger.Info("mqtt reconnecting", "broker", cfg.Broker)
		}).
		SetDefaultPublishHandler(func(_ paho.Client, m paho.Message) {
			t.deliver(Message{Topic: m.Topic(), Payload: m.Payload(), Retained: m.Retained()})
		})
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.WillTopic != "" {
		opts.SetBinaryWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}

	t.client = paho.NewClient(opts)
	return t
}

// signal does a non-blocking send; one pending edge is enough for the
// session to observe the transition.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (t *RealTransport) deliver(m Message) {
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()
	if h != nil {
		h(m)
	}
}

func (t *RealTransport) wait(ctx context.Context, tok paho.Token, op string) error {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s timeout", op)
	}
}

func (t *RealTransport) Connect(ctx context.Context) error {
	return t.wait(ctx, t.client.Connect(), "connect")
}

func (t *RealTransport) Subscribe(ctx context.Context, topic string, qos byte) error {
	// nil callback routes messages to the default publish handler
	return t.wait(ctx, t.client.Subscribe(topic, qos, nil), "subscribe "+topic)
}

func (t *RealTransport) Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error {
	return t.wait(ctx, t.client.Publish(topic, qos, retain, payload), "publish")
}

func (t *RealTransport) Up() <-chan struct{} { return t.up }

func (t *RealTransport) Down() <-chan struct{} { return t.down }

func (t *RealTransport) SetMessageHandler(h func(Message)) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *RealTransport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (t *RealTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}
