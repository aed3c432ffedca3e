package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/eth-sensor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Broker: "tcp://localhost:1883", HTTPAddr: ":80", SyncInterval: 10 * time.Second}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Session.State != "DISCONNECTED" {
		t.Errorf("Session.State: got %q, want DISCONNECTED", snap.Session.State)
	}
	if snap.Session.Ready || snap.Clock.Synced {
		t.Error("expected not ready and not synced initially")
	}
	if snap.Button.Enabled {
		t.Error("expected button disabled until first update")
	}
}

func TestSetSessionAndClock(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetSession(SessionInfo{State: "READY", Ready: true, Connected: true, ClientID: "aabbccddeeff"})
	tr.SetClock(ClockInfo{Synced: true, Now: "2026-01-01T00:00:05", AnchorTime: "2026-01-01T00:00:00", AnchorTick: 1000})

	snap := tr.Snapshot()
	if snap.Session.State != "READY" || !snap.Session.Ready {
		t.Errorf("Session: got %+v", snap.Session)
	}
	if !snap.Clock.Synced || snap.Clock.AnchorTick != 1000 {
		t.Errorf("Clock: got %+v", snap.Clock)
	}
}

func TestUpdateButton(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.UpdateButton(logic.StatePressed, true, logic.EventCounts{Presses: 3, Holds: 1})
	reset := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	tr.RecordConfigReset(reset)

	snap := tr.Snapshot()
	if !snap.Button.Enabled {
		t.Error("expected Button.Enabled after update")
	}
	if snap.Button.State != logic.StatePressed {
		t.Errorf("Button.State: got %q", snap.Button.State)
	}
	if snap.Button.Counts.Presses != 3 || snap.Button.Counts.Holds != 1 {
		t.Errorf("Button.Counts: got %+v", snap.Button.Counts)
	}
	if !snap.Button.LastReset.Equal(reset) {
		t.Errorf("Button.LastReset: got %v", snap.Button.LastReset)
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "ethernet", IP: "192.168.1.50", Status: "connected"})
	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected network info")
	}
	if snap.Network.IP != "192.168.1.50" {
		t.Errorf("Network.IP: got %q", snap.Network.IP)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Second)}
	if snap.Uptime() != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	before := time.Now()
	snap := tr.Snapshot()
	if snap.Now.Before(before) {
		t.Errorf("Now %v is before call time %v", snap.Now, before)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})

	snap := tr.Snapshot()
	snap.Network.IP = "9.9.9.9"
	snap.Session.State = "READY"

	again := tr.Snapshot()
	if again.Network.IP != "1.2.3.4" {
		t.Errorf("mutating a snapshot leaked into the tracker: %q", again.Network.IP)
	}
	if again.Session.State != "DISCONNECTED" {
		t.Errorf("Session.State: got %q", again.Session.State)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(65*time.Second + 500*time.Millisecond),
		Session:   SessionInfo{State: "READY", Ready: true, Connected: true, ClientID: "aabbccddeeff", StatusTopic: "sensor/aabbccddeeff/status"},
		Clock:     ClockInfo{Synced: true, Now: "2026-01-01T00:01:05", AnchorTime: "2026-01-01T00:00:00", AnchorTick: 42, Uptime: 65 * time.Second},
		Config: Config{
			Broker:           "tcp://10.0.0.2:1883",
			HTTPAddr:         ":8080",
			SyncInterval:     10 * time.Second,
			LivenessInterval: 19 * time.Second,
			CommandTopic:     "sensor/commands",
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.UptimeSeconds != 65 {
		t.Errorf("UptimeSeconds: got %d, want 65", s.UptimeSeconds)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("StartTime: got %q", s.StartTime)
	}
	if s.MQTT.State != "READY" || !s.MQTT.Ready || s.MQTT.Broker != "tcp://10.0.0.2:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if !s.Clock.Synced || s.Clock.AnchorTick != 42 || s.Clock.UptimeSeconds != 65 {
		t.Errorf("Clock: got %+v", s.Clock)
	}
	if s.Config.SyncIntervalMs != 10000 || s.Config.LivenessIntervalMs != 19000 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Button != nil {
		t.Error("expected button omitted when disabled")
	}
	if s.Network != nil {
		t.Error("expected network omitted when nil")
	}
}

func TestFormatJSONButton(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Now(),
		Now:       time.Now(),
		Button:    ButtonInfo{Enabled: true, Counts: logic.EventCounts{Presses: 2, Holds: 1}},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	b := parsed.Status.Button
	if b == nil {
		t.Fatal("expected button section")
	}
	if b.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN before baseline", b.State)
	}
	if b.Presses != 2 || b.Holds != 1 {
		t.Errorf("counts: got %+v", b)
	}
	if b.LastReset != "" {
		t.Errorf("LastReset: got %q, want empty", b.LastReset)
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Now(),
		Now:       time.Now(),
		Network: &NetworkInfo{
			Type:    "ethernet",
			IP:      "192.168.1.50",
			Status:  "connected",
			Gateway: "192.168.1.1",
			MAC:     "aa:bb:cc:dd:ee:ff",
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	n := parsed.Status.Network
	if n == nil {
		t.Fatal("expected network section")
	}
	if n.Gateway != "192.168.1.1" || n.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Network: got %+v", n)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.UpdateButton(logic.StateReleased, true, logic.EventCounts{Presses: i})
			tr.SetSession(SessionInfo{Ready: i%2 == 0})
			tr.SetClock(ClockInfo{AnchorTick: uint32(i)})
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
