package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload any
	retain  bool
	qos     byte
}

type fakePublisher struct {
	calls []published
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload any, retain bool, qos byte) error {
	f.calls = append(f.calls, published{topic, payload, retain, qos})
	return f.err
}

type doc map[string]any

func (d doc) Load() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func fullSensor() doc {
	return doc{
		"CON_TEMP_MIN":       5.0,
		"CON_TEMP_WARN_LOW":  10.0,
		"CON_TEMP_WARN_HIGH": 30.0,
		"CON_TEMP_MAX":       35.0,
		"CON_HUM_MIN":        20.0,
		"CON_HUM_WARN_LOW":   30.0,
		"CON_HUM_WARN_HIGH":  70.0,
		"CON_HUM_MAX":        80.0,
	}
}

func newHandler(pub Publisher, sensor doc) *Handler {
	return New(Options{
		Publisher:     pub,
		Ethernet:      doc{"dhcp": true},
		MQTT:          doc{"broker": "10.0.0.2", "port": 1883.0},
		Sensor:        sensor,
		CommandTopic:  "sensor/commands",
		ResponseTopic: "sensor/response/aa:bb:cc:dd:ee:ff/config",
	})
}

func TestGetConfigPublishesOneResponse(t *testing.T) {
	pub := &fakePublisher{}
	h := newHandler(pub, fullSensor())

	err := h.HandleMessage(context.Background(), "sensor/commands", "  "+GetConfig+"\n")
	require.NoError(t, err)
	require.Len(t, pub.calls, 1)

	call := pub.calls[0]
	assert.Equal(t, "sensor/response/aa:bb:cc:dd:ee:ff/config", call.topic)
	assert.False(t, call.retain)

	data, err := json.Marshal(call.payload)
	require.NoError(t, err)
	var got struct {
		Ethernet map[string]any  `json:"ethernet"`
		MQTT     map[string]any  `json:"mqtt"`
		Alerts   map[string]*any `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, true, got.Ethernet["dhcp"])
	assert.Equal(t, "10.0.0.2", got.MQTT["broker"])
	require.Len(t, got.Alerts, 8)
	for field, v := range got.Alerts {
		assert.NotNil(t, v, "alert %s is null", field)
	}
	assert.Equal(t, 35.0, *got.Alerts["temp_crit_high"])
	assert.Equal(t, 20.0, *got.Alerts["hum_crit_low"])
}

func TestGetConfigMissingThresholdsAreNull(t *testing.T) {
	pub := &fakePublisher{}
	h := newHandler(pub, doc{"CON_TEMP_MIN": 1.0})

	require.NoError(t, h.HandleMessage(context.Background(), "sensor/commands", GetConfig))
	require.Len(t, pub.calls, 1)

	data, err := json.Marshal(pub.calls[0].payload)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"temp_warn_low":null`)
	assert.Contains(t, string(data), `"temp_crit_low":1`)
}

func TestUnrecognizedMessagesIgnored(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"other topic", "sensor/other", GetConfig},
		{"other command", "sensor/commands", `{"command":"reboot"}`},
		{"reformatted json", "sensor/commands", `{"command": "get_config"}`},
		{"empty", "sensor/commands", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			h := newHandler(pub, fullSensor())
			require.NoError(t, h.HandleMessage(context.Background(), tt.topic, tt.payload))
			assert.Empty(t, pub.calls)
		})
	}
}

func TestGetConfigReadsLive(t *testing.T) {
	pub := &fakePublisher{}
	sensor := fullSensor()
	h := newHandler(pub, sensor)

	require.NoError(t, h.HandleMessage(context.Background(), "sensor/commands", GetConfig))
	sensor["CON_TEMP_MAX"] = 40.0
	require.NoError(t, h.HandleMessage(context.Background(), "sensor/commands", GetConfig))

	require.Len(t, pub.calls, 2)
	second := pub.calls[1].payload.(ConfigResponse)
	assert.Equal(t, 40.0, second.Alerts["temp_crit_high"])
}

func TestGetConfigPublishError(t *testing.T) {
	boom := errors.New("not ready")
	pub := &fakePublisher{err: boom}
	h := newHandler(pub, fullSensor())

	err := h.HandleMessage(context.Background(), "sensor/commands", GetConfig)
	assert.ErrorIs(t, err, boom)
}

func TestBuildConfigResponseNilCollaborators(t *testing.T) {
	h := New(Options{CommandTopic: "sensor/commands"})
	resp := h.BuildConfigResponse()
	assert.NotNil(t, resp.Ethernet)
	assert.NotNil(t, resp.MQTT)
	assert.Len(t, resp.Alerts, 8)
}
