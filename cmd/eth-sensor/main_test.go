package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/eth-sensor/internal/gpio"
	"github.com/sweeney/eth-sensor/internal/logic"
	"github.com/sweeney/eth-sensor/internal/status"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStores(t *testing.T) (*stores, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := openStores(dir, quietLogger())
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	return st, dir
}

func TestOpenStoresCreatesDefaults(t *testing.T) {
	_, dir := openTestStores(t)

	for _, name := range []string{"mqtt_config.json", "ethernet_config.json", "sensor_config.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestEmbeddedDefaults(t *testing.T) {
	st, _ := openTestStores(t)

	if got := st.MQTT.GetInt("port", 0); got != 1883 {
		t.Errorf("mqtt port: got %d, want 1883", got)
	}
	if got := st.MQTT.GetStrings("subscribe_topics", nil); len(got) != 1 || got[0] != "sensor/commands" {
		t.Errorf("subscribe_topics: got %v", got)
	}
	for _, key := range []string{
		"CON_TEMP_MIN", "CON_TEMP_WARN_LOW", "CON_TEMP_WARN_HIGH", "CON_TEMP_MAX",
		"CON_HUM_MIN", "CON_HUM_WARN_LOW", "CON_HUM_WARN_HIGH", "CON_HUM_MAX",
	} {
		if st.Sensor.Get(key, nil) == nil {
			t.Errorf("sensor default %s missing", key)
		}
	}
}

func TestPrintConfig(t *testing.T) {
	st, _ := openTestStores(t)
	if _, err := st.MQTT.Set("broker", "10.1.1.1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var buf bytes.Buffer
	if err := printConfig(&buf, st); err != nil {
		t.Fatalf("printConfig: %v", err)
	}

	var doc map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc["mqtt"]["broker"] != "10.1.1.1" {
		t.Errorf("mqtt.broker: got %v", doc["mqtt"]["broker"])
	}
	if _, ok := doc["ethernet"]; !ok {
		t.Error("ethernet section missing")
	}
	if _, ok := doc["sensor"]; !ok {
		t.Error("sensor section missing")
	}
}

func TestResetConfigKeys(t *testing.T) {
	st, _ := openTestStores(t)
	st.MQTT.Save(map[string]any{"broker": "10.1.1.1", "user": "bob"})

	if err := resetConfig(st, "mqtt", []string{"broker"}, quietLogger()); err != nil {
		t.Fatalf("resetConfig: %v", err)
	}
	if got := st.MQTT.GetString("broker", ""); got != "192.168.42.9" {
		t.Errorf("broker: got %q, want default", got)
	}
	if got := st.MQTT.GetString("user", ""); got != "bob" {
		t.Errorf("user should be untouched, got %q", got)
	}
}

func TestResetConfigUnknownStore(t *testing.T) {
	st, _ := openTestStores(t)
	if err := resetConfig(st, "wifi", nil, quietLogger()); err == nil {
		t.Error("expected error for unknown store")
	}
}

func TestResetFromButton(t *testing.T) {
	st, _ := openTestStores(t)
	st.MQTT.Save(map[string]any{"broker": "10.1.1.1", "port": 8883.0, "user": "bob", "password": "pw", "keepalive": 30.0})
	st.Ethernet.Save(map[string]any{"dhcp": false, "ip": "10.1.1.50"})

	if err := resetFromButton(st, quietLogger()); err != nil {
		t.Fatalf("resetFromButton: %v", err)
	}

	if got := st.MQTT.GetInt("port", 0); got != 1883 {
		t.Errorf("port: got %d, want 1883", got)
	}
	if got := st.MQTT.GetString("password", "x"); got != "" {
		t.Errorf("password: got %q, want empty default", got)
	}
	if got := st.MQTT.GetInt("keepalive", 0); got != 30 {
		t.Errorf("keepalive is not a button key, got %d", got)
	}
	if got := st.Ethernet.Get("dhcp", nil); got != true {
		t.Errorf("ethernet dhcp: got %v, want true", got)
	}
}

// buttonHarness drives runButtonLoop one tick at a time.
type buttonHarness struct {
	tick   chan time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

func startButtonLoop(t *testing.T, btn gpio.Button, tracker *status.Tracker, onHold func() error) *buttonHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &buttonHarness{tick: make(chan time.Time), cancel: cancel, done: make(chan struct{})}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	now := func() time.Time {
		t := start.Add(time.Duration(n) * 50 * time.Millisecond)
		n++
		return t
	}
	det := logic.NewHoldDetector(100*time.Millisecond, time.Second)
	go func() {
		defer close(h.done)
		runButtonLoop(ctx, btn, det, h.tick, now, tracker, onHold, quietLogger())
	}()
	return h
}

// ticks sends n ticks; each send returns once the previous one is processed.
func (h *buttonHarness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- time.Time{}
	}
}

func (h *buttonHarness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("button loop did not stop")
	}
}

func TestButtonLoopHoldResetsOnce(t *testing.T) {
	btn := gpio.NewFakeButton(false, false, false, true)
	tracker := status.NewTracker(time.Now(), status.Config{})
	resets := 0
	h := startButtonLoop(t, btn, tracker, func() error {
		resets++
		return nil
	})

	// 3 released samples, then held for 1.5s
	h.ticks(33)
	h.stop(t)

	if resets != 1 {
		t.Errorf("resets: got %d, want 1", resets)
	}
	snap := tracker.Snapshot()
	if snap.Button.LastReset.IsZero() {
		t.Error("expected reset time recorded")
	}
	if snap.Button.State != logic.StatePressed || snap.Button.Counts.Holds != 1 {
		t.Errorf("button: got %+v", snap.Button)
	}
}

func TestButtonLoopShortPressNoReset(t *testing.T) {
	btn := gpio.NewFakeButton(false, false, false, true, true, true, true, false)
	resets := 0
	h := startButtonLoop(t, btn, nil, func() error {
		resets++
		return nil
	})

	h.ticks(40)
	h.stop(t)

	if resets != 0 {
		t.Errorf("resets: got %d, want 0", resets)
	}
}

func TestButtonLoopReadErrorRecovery(t *testing.T) {
	btn := gpio.NewFakeButton(false)
	btn.ReadError = errors.New("line busy")
	tracker := status.NewTracker(time.Now(), status.Config{})
	h := startButtonLoop(t, btn, tracker, func() error { return nil })

	h.ticks(5)
	if tracker.Snapshot().Button.Enabled {
		t.Error("tracker should not be updated while reads fail")
	}

	btn.SetReadError(nil)
	h.ticks(5)
	h.stop(t)

	if !tracker.Snapshot().Button.Baselined {
		t.Error("expected baseline after reads recover")
	}
}

func TestButtonLoopResetFailureNotRecorded(t *testing.T) {
	btn := gpio.NewFakeButton(false, false, false, true)
	tracker := status.NewTracker(time.Now(), status.Config{})
	h := startButtonLoop(t, btn, tracker, func() error {
		return errors.New("disk full")
	})

	h.ticks(33)
	h.stop(t)

	if !tracker.Snapshot().Button.LastReset.IsZero() {
		t.Error("failed reset must not be recorded")
	}
}
