package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sweeney/eth-sensor/internal/store"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

// Store names accepted by reset-config.
const (
	storeMQTT     = "mqtt"
	storeEthernet = "ethernet"
	storeSensor   = "sensor"
)

// buttonResetKeys are the messaging keys a held reset button restores.
var buttonResetKeys = []string{"broker", "port", "user", "password"}

// stores holds the three device configuration documents.
type stores struct {
	MQTT     *store.Store
	Ethernet *store.Store
	Sensor   *store.Store
}

func openStores(dataDir string, logger *slog.Logger) (*stores, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	open := func(name string) (*store.Store, error) {
		file := name + "_config.json"
		raw, err := defaultsFS.ReadFile("defaults/" + file)
		if err != nil {
			return nil, fmt.Errorf("read embedded defaults %s: %w", file, err)
		}
		defs, err := store.LoadDefaults(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return store.New(filepath.Join(dataDir, file), defs, logger)
	}

	var st stores
	var err error
	if st.MQTT, err = open(storeMQTT); err != nil {
		return nil, err
	}
	if st.Ethernet, err = open(storeEthernet); err != nil {
		return nil, err
	}
	if st.Sensor, err = open(storeSensor); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *stores) byName(name string) (*store.Store, error) {
	switch name {
	case storeMQTT:
		return s.MQTT, nil
	case storeEthernet:
		return s.Ethernet, nil
	case storeSensor:
		return s.Sensor, nil
	default:
		return nil, fmt.Errorf("unknown store %q (valid: mqtt, ethernet, sensor)", name)
	}
}

// printConfig writes the current contents of every store as one JSON
// document.
func printConfig(w io.Writer, s *stores) error {
	doc := map[string]map[string]any{
		storeMQTT:     s.MQTT.Load(),
		storeEthernet: s.Ethernet.Load(),
		storeSensor:   s.Sensor.Load(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// resetConfig restores keys of the named store to their defaults; no keys
// resets the whole store.
func resetConfig(s *stores, name string, keys []string, logger *slog.Logger) error {
	st, err := s.byName(name)
	if err != nil {
		return err
	}
	if err := st.Reset(keys...); err != nil {
		return fmt.Errorf("reset %s: %w", name, err)
	}
	logger.Info("configuration reset", "store", name, "keys", keys)
	return nil
}

// resetFromButton restores the broker credentials and link settings.
// The new values are picked up on the next start.
func resetFromButton(s *stores, logger *slog.Logger) error {
	if err := s.MQTT.Reset(buttonResetKeys...); err != nil {
		return fmt.Errorf("reset mqtt: %w", err)
	}
	if err := s.Ethernet.Reset(); err != nil {
		return fmt.Errorf("reset ethernet: %w", err)
	}
	logger.Warn("configuration reset by button, new values apply at next start",
		"mqtt_keys", buttonResetKeys)
	return nil
}
