// Package device derives the device identity and owns the restart primitive.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MachineIDPath is where systemd keeps the host's unique id.
const MachineIDPath = "/etc/machine-id"

// idKey is the store key holding a generated fallback id.
const idKey = "device_id"

// NormalizeMAC parses any hardware address notation and returns it as
// lower-case colon-separated hex.
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("normalize mac %q: %w", s, err)
	}
	return hw.String(), nil
}

// KV is the subset of the config store used to persist a generated id.
type KV interface {
	GetString(key, def string) string
	Set(key string, value any) (map[string]any, error)
}

// FallbackID returns a stable unique id for devices without a usable
// hardware address. It prefers the machine id at machineIDPath and otherwise
// generates a UUID once and persists it in kv.
func FallbackID(machineIDPath string, kv KV) (string, error) {
	if raw, err := os.ReadFile(machineIDPath); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	}

	if id := kv.GetString(idKey, ""); id != "" {
		return id, nil
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := kv.Set(idKey, id); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// Restarter restarts the whole device. It is the single fatal escalation path.
type Restarter interface {
	Restart(reason string)
}

// ExitRestarter terminates the process so the service supervisor starts it
// again. Only the first call has any effect.
type ExitRestarter struct {
	Logger *slog.Logger
	// Exit defaults to os.Exit.
	Exit func(code int)
	Code int

	once sync.Once
}

// Restart logs the reason and exits.
func (r *ExitRestarter) Restart(reason string) {
	r.once.Do(func() {
		logger := r.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("restarting device", "reason", reason)
		exit := r.Exit
		if exit == nil {
			exit = os.Exit
		}
		code := r.Code
		if code == 0 {
			code = 1
		}
		exit(code)
	})
}

// FakeRestarter records restart requests for tests.
type FakeRestarter struct {
	mu      sync.Mutex
	reasons []string
}

// Restart records the reason.
func (f *FakeRestarter) Restart(reason string) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
}

// Count returns how many restarts were requested.
func (f *FakeRestarter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

// Reasons returns a copy of the recorded reasons.
func (f *FakeRestarter) Reasons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

// ErrNoMAC is returned by ResolveMAC when no source yields an address.
var ErrNoMAC = errors.New("no hardware address available")

// ResolveMAC picks the configured override if set, then each candidate in
// order, returning the first that normalizes.
func ResolveMAC(override string, candidates ...func() (string, error)) (string, error) {
	if override != "" {
		return NormalizeMAC(override)
	}
	for _, c := range candidates {
		raw, err := c()
		if err != nil || raw == "" {
			continue
		}
		if mac, err := NormalizeMAC(raw); err == nil {
			return mac, nil
		}
	}
	return "", ErrNoMAC
}
