package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/eth-sensor/internal/clock"
	"github.com/sweeney/eth-sensor/internal/command"
	"github.com/sweeney/eth-sensor/internal/config"
	"github.com/sweeney/eth-sensor/internal/device"
	"github.com/sweeney/eth-sensor/internal/gpio"
	"github.com/sweeney/eth-sensor/internal/link"
	"github.com/sweeney/eth-sensor/internal/logic"
	"github.com/sweeney/eth-sensor/internal/metrics"
	"github.com/sweeney/eth-sensor/internal/mqtt"
	"github.com/sweeney/eth-sensor/internal/status"
	"github.com/sweeney/eth-sensor/internal/web"
)

const (
	buttonPoll     = 50 * time.Millisecond
	buttonDebounce = 100 * time.Millisecond
	trackerRefresh = time.Second
)

// daemonOptions carries the hardware and network seams. Zero values select
// the real implementations.
type daemonOptions struct {
	NewTransport  func(mqtt.TransportConfig, *slog.Logger) mqtt.Transport
	Restarter     device.Restarter
	Button        gpio.Button
	MachineIDPath string
	Registry      *prometheus.Registry
	HTTPClient    *http.Client
	Ticks         clock.TickSource
}

// daemon is the wired set of services.
type daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	stores   *stores
	link     *link.Monitor
	clock    *clock.Clock
	session  *mqtt.Session
	commands *command.Handler
	tracker  *status.Tracker
	web      *web.Server
	button   gpio.Button
}

func newDaemon(cfg *config.Config, logger *slog.Logger, st *stores, opts daemonOptions) (*daemon, error) {
	if opts.NewTransport == nil {
		opts.NewTransport = func(c mqtt.TransportConfig, l *slog.Logger) mqtt.Transport {
			return mqtt.NewRealTransport(c, l)
		}
	}
	if opts.Restarter == nil {
		opts.Restarter = &device.ExitRestarter{Logger: logger}
	}
	if opts.MachineIDPath == "" {
		opts.MachineIDPath = device.MachineIDPath
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	rec := metrics.NewPrometheus(opts.Registry)

	mon := link.NewMonitor(cfg.Link.EnvFile, cfg.Link.Interface, st.Ethernet, logger.With("component", "link"))

	mac, err := device.ResolveMAC(cfg.Device.MAC, mon.MAC)
	var fallbackID string
	if err != nil {
		logger.Warn("no hardware address, using fallback id", "error", err)
		if fallbackID, err = device.FallbackID(opts.MachineIDPath, st.MQTT); err != nil {
			return nil, fmt.Errorf("device id: %w", err)
		}
	}
	id, err := mqtt.NewIdentity(mac, fallbackID, cfg.MQTT.CommandTopic, st.MQTT)
	if err != nil {
		return nil, err
	}
	logger.Info("device identity", "mac", id.MAC, "client_id", id.ClientID, "status_topic", id.StatusTopic)

	clk := clock.New(clock.Options{
		URL:           cfg.Clock.URL,
		OffsetSeconds: cfg.Clock.OffsetSeconds,
		MaxAttempts:   cfg.Clock.MaxAttempts,
		RetryDelay:    cfg.Clock.RetryDelay,
		Interval:      cfg.Clock.Interval,
		Timeout:       cfg.Clock.Timeout,
		Ticks:         opts.Ticks,
		HTTPClient:    opts.HTTPClient,
		Link:          mon,
		Restarter:     opts.Restarter,
		Metrics:       rec,
		Logger:        logger.With("component", "clock"),
	})

	broker := mqtt.BrokerURL(st.MQTT.GetString("broker", ""), st.MQTT.GetInt("port", 1883))
	tr := opts.NewTransport(mqtt.TransportConfig{
		Broker:      broker,
		ClientID:    id.ClientID,
		Username:    st.MQTT.GetString("user", ""),
		Password:    st.MQTT.GetString("password", ""),
		KeepAlive:   time.Duration(st.MQTT.GetInt("keepalive", 120)) * time.Second,
		WillTopic:   id.WillTopic,
		WillPayload: id.WillPayload,
	}, logger.With("component", "mqtt"))

	sess := mqtt.NewSession(id, tr, mqtt.Options{
		LivenessInterval: cfg.MQTT.LivenessInterval,
		ConnectBackoff:   cfg.MQTT.ConnectBackoff,
		QueueLen:         cfg.MQTT.QueueLen,
		Clock:            clk,
		Metrics:          rec,
		Logger:           logger.With("component", "mqtt"),
	})

	handler := command.New(command.Options{
		Publisher:     sess,
		Ethernet:      command.SnapshotFunc(mon.Config),
		MQTT:          st.MQTT,
		Sensor:        st.Sensor,
		CommandTopic:  id.CommandTopic,
		ResponseTopic: id.ResponseTopic,
		Metrics:       rec,
		Logger:        logger.With("component", "command"),
	})
	sess.SetHandler(handler)

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:           broker,
		HTTPAddr:         cfg.HTTP.Addr,
		ClockURL:         cfg.Clock.URL,
		SyncInterval:     cfg.Clock.Interval,
		LivenessInterval: cfg.MQTT.LivenessInterval,
		CommandTopic:     id.CommandTopic,
	})

	d := &daemon{
		cfg:      cfg,
		logger:   logger,
		stores:   st,
		link:     mon,
		clock:    clk,
		session:  sess,
		commands: handler,
		tracker:  tracker,
		button:   opts.Button,
	}
	if cfg.HTTP.Addr != "" {
		d.web = web.New(cfg.HTTP.Addr, tracker, opts.Registry)
	}
	if d.button == nil && cfg.Button.Pin > 0 {
		b, err := gpio.NewRealButton(cfg.Button.Pin)
		if err != nil {
			logger.Warn("reset button unavailable", "pin", cfg.Button.Pin, "error", err)
		} else {
			d.button = b
		}
	}
	return d, nil
}

// run starts every service and blocks until ctx is cancelled.
func (d *daemon) run(ctx context.Context) error {
	if d.web != nil {
		go func() {
			if err := d.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("http server error", "error", err)
			}
		}()
		d.logger.Info("http status server listening", "addr", d.cfg.HTTP.Addr)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.clock.Start(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("clock service failed to start", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := d.session.Start(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("mqtt session failed to start", "error", err)
		}
	}()

	if d.button != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(buttonPoll)
			defer ticker.Stop()
			det := logic.NewHoldDetector(buttonDebounce, d.cfg.Button.Hold)
			runButtonLoop(ctx, d.button, det, ticker.C, time.Now, d.tracker, func() error {
				return resetFromButton(d.stores, d.logger)
			}, d.logger)
		}()
	}

	d.logger.Info("started",
		"clock_url", d.cfg.Clock.URL,
		"sync_interval", d.cfg.Clock.Interval,
		"liveness_interval", d.cfg.MQTT.LivenessInterval)

	ticker := time.NewTicker(trackerRefresh)
	defer ticker.Stop()
	for {
		d.refreshTracker()
		select {
		case <-ctx.Done():
			wg.Wait()
			return d.shutdown()
		case <-ticker.C:
		}
	}
}

// refreshTracker copies the live state of every service into the tracker.
func (d *daemon) refreshTracker() {
	id := d.session.Identity()
	d.tracker.SetSession(status.SessionInfo{
		State:       d.session.State().String(),
		Ready:       d.session.IsReady(),
		Connected:   d.session.IsConnected(),
		ClientID:    id.ClientID,
		StatusTopic: id.StatusTopic,
	})

	a := d.clock.Anchor()
	d.tracker.SetClock(status.ClockInfo{
		Synced:     d.clock.Synced(),
		Now:        d.clock.Now(),
		AnchorTime: a.Timestamp,
		AnchorTick: a.Tick,
		Uptime:     d.clock.Uptime(),
	})

	info := d.link.Info()
	d.tracker.SetNetwork(&status.NetworkInfo{
		Type:    info.Type,
		IP:      info.IP,
		Status:  info.Status,
		Gateway: info.Gateway,
		MAC:     info.MAC,
	})
}

func (d *daemon) shutdown() error {
	var errs []error
	if err := d.session.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop mqtt session: %w", err))
	}
	if err := d.clock.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop clock: %w", err))
	}
	if d.button != nil {
		if err := d.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button: %w", err))
		}
	}
	if d.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.web.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}
	d.logger.Info("stopped")
	return errors.Join(errs...)
}

// runButtonLoop polls the button on every tick and runs onHold when a long
// press is detected. It returns when ctx is cancelled.
func runButtonLoop(ctx context.Context, btn gpio.Button, det *logic.HoldDetector, tick <-chan time.Time, now func() time.Time, tracker *status.Tracker, onHold func() error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}

		t := now()
		pressed, err := btn.Pressed()
		if err != nil {
			logger.Warn("button read error", "error", err)
			continue
		}

		for _, ev := range det.Process(logic.Input{Pressed: pressed, Time: t}) {
			logger.Debug("button event", "event", ev.Type, "held", ev.Held)
			if ev.Type != logic.EventHold {
				continue
			}
			logger.Info("reset button held, restoring default configuration", "held", ev.Held)
			if err := onHold(); err != nil {
				logger.Error("configuration reset failed", "error", err)
				continue
			}
			if tracker != nil {
				tracker.RecordConfigReset(t)
			}
		}

		if tracker != nil {
			tracker.UpdateButton(det.CurrentState(), det.IsBaselined(), det.Counts())
		}
	}
}
