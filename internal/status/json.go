package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Clock         ClockJSON    `json:"clock"`
	Button        *ButtonJSON  `json:"button,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports messaging session state.
type MQTTStatus struct {
	State       string `json:"state"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
	ClientID    string `json:"client_id"`
	StatusTopic string `json:"status_topic"`
	Broker      string `json:"broker"`
}

// ClockJSON reports clock service state.
type ClockJSON struct {
	Synced        bool   `json:"synced"`
	Now           string `json:"now"`
	AnchorTime    string `json:"anchor_time,omitempty"`
	AnchorTick    uint32 `json:"anchor_tick,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ButtonJSON reports reset button state.
type ButtonJSON struct {
	State     string `json:"state"`
	Baselined bool   `json:"baselined"`
	Presses   int    `json:"presses"`
	Holds     int    `json:"holds"`
	LastReset string `json:"last_reset,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type    string `json:"type"`
	IP      string `json:"ip"`
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
	MAC     string `json:"mac"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker             string `json:"broker"`
	HTTPAddr           string `json:"http_addr"`
	ClockURL           string `json:"clock_url"`
	SyncIntervalMs     int64  `json:"sync_interval_ms"`
	LivenessIntervalMs int64  `json:"liveness_interval_ms"`
	CommandTopic       string `json:"command_topic"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			State:       snap.Session.State,
			Ready:       snap.Session.Ready,
			Connected:   snap.Session.Connected,
			ClientID:    snap.Session.ClientID,
			StatusTopic: snap.Session.StatusTopic,
			Broker:      snap.Config.Broker,
		},
		Clock: ClockJSON{
			Synced:        snap.Clock.Synced,
			Now:           snap.Clock.Now,
			AnchorTime:    snap.Clock.AnchorTime,
			AnchorTick:    snap.Clock.AnchorTick,
			UptimeSeconds: int64(snap.Clock.Uptime.Truncate(time.Second).Seconds()),
		},
		Config: ConfigJSON{
			Broker:             snap.Config.Broker,
			HTTPAddr:           snap.Config.HTTPAddr,
			ClockURL:           snap.Config.ClockURL,
			SyncIntervalMs:     snap.Config.SyncInterval.Milliseconds(),
			LivenessIntervalMs: snap.Config.LivenessInterval.Milliseconds(),
			CommandTopic:       snap.Config.CommandTopic,
		},
	}

	if snap.Button.Enabled {
		state := string(snap.Button.State)
		if state == "" {
			state = "UNKNOWN"
		}
		b := &ButtonJSON{
			State:     state,
			Baselined: snap.Button.Baselined,
			Presses:   snap.Button.Counts.Presses,
			Holds:     snap.Button.Counts.Holds,
		}
		if !snap.Button.LastReset.IsZero() {
			b.LastReset = snap.Button.LastReset.UTC().Format(time.RFC3339)
		}
		inner.Button = b
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:    snap.Network.Type,
			IP:      snap.Network.IP,
			Status:  snap.Network.Status,
			Gateway: snap.Network.Gateway,
			MAC:     snap.Network.MAC,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
