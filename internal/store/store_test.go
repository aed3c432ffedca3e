package store

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, defaults map[string]any) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "mqtt_config.json"), defaults, discardLogger())
	require.NoError(t, err)
	return s
}

func readFile(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestNewWritesDefaults(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "10.0.0.1", "port": float64(1883)})

	got := readFile(t, s.Path())
	assert.Equal(t, "10.0.0.1", got["broker"])
	assert.Equal(t, float64(1883), got["port"])
}

func TestNewKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"broker":"existing"}`), 0o644))

	s, err := New(path, map[string]any{"broker": "default"}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "existing", s.GetString("broker", ""))
}

func TestLoadFallsBackToDefaultsOnCorruptFile(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "default"})
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	assert.Equal(t, map[string]any{"broker": "default"}, s.Load())
}

func TestLoadFallsBackToDefaultsOnMissingFile(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "default"})
	require.NoError(t, os.Remove(s.Path()))

	assert.Equal(t, "default", s.Get("broker", nil))
}

func TestSaveMergesRatherThanOverwrites(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "b", "port": float64(1883)})

	_, err := s.Set("user", "alice")
	require.NoError(t, err)
	merged, err := s.Save(map[string]any{"port": float64(8883)})
	require.NoError(t, err)

	want := map[string]any{"broker": "b", "port": float64(8883), "user": "alice"}
	assert.Equal(t, want, merged)
	assert.Equal(t, want, readFile(t, s.Path()))
}

func TestResetKeysUsesDefaultsAndNeverInventsKeys(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "default-broker", "port": float64(1883)})
	_, err := s.Save(map[string]any{"broker": "X", "user": "bob"})
	require.NoError(t, err)

	require.NoError(t, s.Reset("broker", "user", "password"))

	got := readFile(t, s.Path())
	assert.Equal(t, "default-broker", got["broker"])
	assert.NotContains(t, got, "user")
	assert.NotContains(t, got, "password", "reset must not add keys absent from defaults")
	assert.Equal(t, float64(1883), got["port"])
}

func TestResetWithOnlyBrokerStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"broker":"X"}`), 0o644))
	s, err := New(path, map[string]any{"broker": "default"}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, s.Reset("broker", "user"))

	assert.Equal(t, map[string]any{"broker": "default"}, readFile(t, path))
}

func TestResetAll(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "default"})
	_, err := s.Save(map[string]any{"broker": "X", "extra": true})
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.Equal(t, map[string]any{"broker": "default"}, readFile(t, s.Path()))
}

func TestTypedGetters(t *testing.T) {
	s := newStore(t, map[string]any{
		"port":             float64(1883),
		"broker":           "host",
		"subscribe_topics": []any{"a/b", 7, "c/d"},
	})

	assert.Equal(t, 1883, s.GetInt("port", 0))
	assert.Equal(t, 42, s.GetInt("missing", 42))
	assert.Equal(t, 9, s.GetInt("broker", 9), "non-number falls back")
	assert.Equal(t, "host", s.GetString("broker", ""))
	assert.Equal(t, "x", s.GetString("port", "x"))
	assert.Equal(t, []string{"a/b", "c/d"}, s.GetStrings("subscribe_topics", nil))
	assert.Nil(t, s.GetStrings("missing", nil))
}

func TestDefaultsIsACopy(t *testing.T) {
	s := newStore(t, map[string]any{"broker": "default"})
	d := s.Defaults()
	d["broker"] = "mutated"
	assert.Equal(t, "default", s.Defaults()["broker"])
}

func TestLoadDefaults(t *testing.T) {
	m, err := LoadDefaults([]byte(`{"port":1883}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1883), m["port"])

	m, err = LoadDefaults([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = LoadDefaults([]byte(`[`))
	assert.Error(t, err)
}
