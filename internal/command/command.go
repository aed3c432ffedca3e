// Package command answers the remote request vocabulary carried on the
// command topic.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweeney/eth-sensor/internal/metrics"
)

// GetConfig is the only recognized command payload, compared after
// trimming surrounding whitespace.
const GetConfig = `{"command":"get_config"}`

// Publisher is the part of the messaging session replies go through.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, retain bool, qos byte) error
}

// Snapshotter returns a live copy of a configuration document.
type Snapshotter interface {
	Load() map[string]any
}

// SnapshotFunc adapts a function to Snapshotter.
type SnapshotFunc func() map[string]any

func (f SnapshotFunc) Load() map[string]any { return f() }

// alertKeys maps reply field names to sensor store keys.
var alertKeys = []struct{ field, key string }{
	{"temp_crit_low", "CON_TEMP_MIN"},
	{"temp_warn_low", "CON_TEMP_WARN_LOW"},
	{"temp_warn_high", "CON_TEMP_WARN_HIGH"},
	{"temp_crit_high", "CON_TEMP_MAX"},
	{"hum_crit_low", "CON_HUM_MIN"},
	{"hum_warn_low", "CON_HUM_WARN_LOW"},
	{"hum_warn_high", "CON_HUM_WARN_HIGH"},
	{"hum_crit_high", "CON_HUM_MAX"},
}

// ConfigResponse is the get_config reply document.
type ConfigResponse struct {
	Ethernet map[string]any `json:"ethernet"`
	MQTT     map[string]any `json:"mqtt"`
	Alerts   map[string]any `json:"alerts"`
}

// Options configures a Handler.
type Options struct {
	Publisher     Publisher
	Ethernet      Snapshotter
	MQTT          Snapshotter
	Sensor        Snapshotter
	CommandTopic  string
	ResponseTopic string
	Metrics       metrics.Recorder
	Logger        *slog.Logger
}

// Handler implements mqtt.Handler.
type Handler struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Handler.
func New(opts Options) *Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{opts: opts, logger: opts.Logger}
}

// HandleMessage replies to get_config on the command topic. Anything else
// is ignored and returns nil.
func (h *Handler) HandleMessage(ctx context.Context, topic, payload string) error {
	if topic != h.opts.CommandTopic || strings.TrimSpace(payload) != GetConfig {
		h.opts.Metrics.Command("ignored")
		return nil
	}

	h.opts.Metrics.Command("get_config")
	h.logger.Info("get_config received, gathering configuration")
	resp := h.BuildConfigResponse()
	if err := h.opts.Publisher.Publish(ctx, h.opts.ResponseTopic, resp, false, 0); err != nil {
		return fmt.Errorf("publish config response: %w", err)
	}
	h.logger.Info("config response published", "topic", h.opts.ResponseTopic)
	return nil
}

// BuildConfigResponse reads every collaborator afresh.
func (h *Handler) BuildConfigResponse() ConfigResponse {
	sensor := load(h.opts.Sensor)
	alerts := make(map[string]any, len(alertKeys))
	for _, a := range alertKeys {
		// missing keys encode as null
		alerts[a.field] = sensor[a.key]
	}
	return ConfigResponse{
		Ethernet: load(h.opts.Ethernet),
		MQTT:     load(h.opts.MQTT),
		Alerts:   alerts,
	}
}

func load(s Snapshotter) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	m := s.Load()
	if m == nil {
		return map[string]any{}
	}
	return m
}
