package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/sweeney/eth-sensor/internal/metrics"
)

// Options tunes a Session. Zero values take defaults.
type Options struct {
	LivenessInterval time.Duration // default 19s
	ConnectBackoff   time.Duration // default 10s
	QueueLen         int           // default 16
	Clock            StatusClock
	Metrics          metrics.Recorder
	Logger           *slog.Logger
}

// Session owns one transport and runs three tasks over it: the connection
// watcher, the liveness publisher and the inbound dispatcher.
type Session struct {
	id      Identity
	tr      Transport
	handler Handler
	opts    Options
	logger  *slog.Logger
	inbox   *inbox

	state atomic.Int32
	ready atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession wires the session to tr. The will message is the transport's
// concern and must already be registered with it.
func NewSession(id Identity, tr Transport, opts Options) *Session {
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = 19 * time.Second
	}
	if opts.ConnectBackoff <= 0 {
		opts.ConnectBackoff = 10 * time.Second
	}
	if opts.QueueLen <= 0 {
		opts.QueueLen = 16
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		id:     id.clone(),
		tr:     tr,
		opts:   opts,
		logger: opts.Logger.With("client_id", id.ClientID),
	}
	s.inbox = newInbox(opts.QueueLen, func(first bool) {
		opts.Metrics.InboundDropped()
		if first {
			s.logger.Warn("mqtt inbound queue full, dropping oldest", "capacity", opts.QueueLen)
		}
	})
	tr.SetMessageHandler(s.inbox.put)
	opts.Metrics.SessionState(int(StateDisconnected))
	return s
}

// SetHandler installs the inbound message handler. Call before Start.
func (s *Session) SetHandler(h Handler) {
	s.handler = h
}

// Identity returns a copy of the session identity.
func (s *Session) Identity() Identity {
	return s.id.clone()
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// IsReady reports whether application traffic may flow.
func (s *Session) IsReady() bool {
	return s.ready.Load()
}

// IsConnected reports raw transport connectivity.
func (s *Session) IsConnected() bool {
	return s.tr.IsConnected()
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.opts.Metrics.SessionState(int(st))
	if prev != st {
		s.logger.Info("mqtt session state", "from", prev.String(), "to", st.String())
	}
}

// Start launches the session tasks, then connects, retrying with a fixed
// backoff until the first connect succeeds. Later reconnects are the
// transport's job. Start returns nil once connected, or ctx's error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("mqtt session already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(3)
	go s.watchConnection(runCtx)
	go s.publishLiveness(runCtx)
	go s.dispatch(runCtx)
	s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		err := s.tr.Connect(runCtx)
		if err == nil {
			s.logger.Info("mqtt connected", "attempts", attempt)
			return nil
		}
		s.logger.Warn("mqtt connect failed, retrying",
			"attempt", attempt,
			"backoff", s.opts.ConnectBackoff,
			"error", err)
		if !sleepCtx(runCtx, s.opts.ConnectBackoff) {
			return runCtx.Err()
		}
	}
}

// Stop cancels the session tasks, waits for them and closes the transport.
func (s *Session) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	s.wg.Wait()
	s.ready.Store(false)
	s.setState(StateDisconnected)
	return s.tr.Close()
}

// Publish sends payload to topic. It fails with ErrNotReady, without
// touching the transport, unless the session is Ready at the moment of the
// call. Payloads other than []byte are JSON-encoded.
func (s *Session) Publish(ctx context.Context, topic string, payload any, retain bool, qos byte) error {
	if !s.ready.Load() {
		s.opts.Metrics.Publish("not_ready")
		s.logger.Warn("mqtt publish skipped, session not ready", "topic", topic)
		return ErrNotReady
	}
	if err := s.send(ctx, topic, payload, retain, qos); err != nil {
		s.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

// send publishes without the readiness gate.
func (s *Session) send(ctx context.Context, topic string, payload any, retain bool, qos byte) error {
	data, err := encodePayload(payload)
	if err != nil {
		s.opts.Metrics.Publish("error")
		return err
	}
	if err := s.tr.Publish(ctx, topic, qos, retain, data); err != nil {
		s.opts.Metrics.Publish("error")
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.opts.Metrics.Publish("ok")
	s.logger.Debug("mqtt published", "topic", topic, "retain", retain, "bytes", len(data))
	return nil
}

// watchConnection runs the state machine: wait for up, subscribe and
// announce, go Ready, wait for down, reset, repeat.
func (s *Session) watchConnection(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.tr.Up():
		}
		s.setState(StateConnected)

		for _, topic := range s.id.Subscriptions {
			if err := s.tr.Subscribe(ctx, topic, 1); err != nil {
				s.logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
				continue
			}
			s.logger.Info("mqtt subscribed", "topic", topic)
		}

		online := FormatStatus(StatusOnline, s.id.MAC, s.opts.Clock)
		if err := s.send(ctx, s.id.StatusTopic, online, true, 1); err != nil {
			s.logger.Error("mqtt online status publish failed", "error", err)
		}

		select {
		case <-s.tr.Down():
			// lost while announcing; never became Ready
			s.setState(StateDisconnected)
			continue
		default:
		}

		s.ready.Store(true)
		s.setState(StateReady)

		select {
		case <-ctx.Done():
			return
		case <-s.tr.Down():
		}
		s.ready.Store(false)
		s.setState(StateDisconnected)
	}
}

// publishLiveness sends a non-retained online beacon every interval while
// Ready.
func (s *Session) publishLiveness(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.ready.Load() {
			continue
		}
		online := FormatStatus(StatusOnline, s.id.MAC, s.opts.Clock)
		_ = s.Publish(ctx, s.id.StatusTopic, online, false, 0)
	}
}

// dispatch consumes the inbox in arrival order.
func (s *Session) dispatch(ctx context.Context) {
	defer s.wg.Done()
	for {
		msg, ok := s.inbox.get(ctx)
		if !ok {
			return
		}
		s.handle(ctx, msg)
	}
}

// handle processes one message. Failures, including panics, are logged and
// never stop the dispatcher.
func (s *Session) handle(ctx context.Context, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("mqtt message handler panicked", "topic", msg.Topic, "panic", r)
		}
	}()

	if !utf8.ValidString(msg.Topic) || !utf8.Valid(msg.Payload) {
		s.logger.Error("mqtt message is not valid UTF-8, discarded", "topic", msg.Topic, "bytes", len(msg.Payload))
		return
	}
	payload := string(msg.Payload)
	s.logger.Debug("mqtt message received", "topic", msg.Topic, "payload", payload)

	if s.handler == nil {
		return
	}
	if err := s.handler.HandleMessage(ctx, msg.Topic, payload); err != nil {
		s.logger.Error("mqtt message handling failed", "topic", msg.Topic, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
