// Package link reports Ethernet link state. Link bring-up is done by the
// network helper, which writes its view of the link to an env file
// (/run/pi-helper.env). This package only reads it.
package link

import (
	"log/slog"
	"net"

	"github.com/joho/godotenv"
)

// Env var names written by the network helper.
const (
	EnvStatus  = "NETWORK_STATUS"
	EnvType    = "NETWORK_TYPE"
	EnvIP      = "NETWORK_IP"
	EnvGateway = "NETWORK_GATEWAY"
	EnvMAC     = "NETWORK_MAC"
)

// StatusConnected is the NETWORK_STATUS value for an up link.
const StatusConnected = "connected"

// Info is a point-in-time view of the link.
type Info struct {
	Status  string `json:"status"`
	Type    string `json:"type,omitempty"`
	IP      string `json:"ip,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	MAC     string `json:"mac,omitempty"`
}

// Connected reports whether the link is up.
func (i Info) Connected() bool {
	return i.Status == StatusConnected
}

// Snapshotter returns a live copy of a config document.
type Snapshotter interface {
	Load() map[string]any
}

// Monitor reads link state from the helper's env file on every call.
type Monitor struct {
	envFile   string
	iface     string
	config    Snapshotter
	logger    *slog.Logger
	ifaceAddr func(name string) (string, error)
}

// NewMonitor creates a Monitor. config is the link settings store
// (static addressing etc.) reported by Config.
func NewMonitor(envFile, iface string, config Snapshotter, logger *slog.Logger) *Monitor {
	return &Monitor{
		envFile:   envFile,
		iface:     iface,
		config:    config,
		logger:    logger,
		ifaceAddr: interfaceMAC,
	}
}

// Info reads the env file. A missing or unreadable file reads as an
// unknown, disconnected link.
func (m *Monitor) Info() Info {
	env, err := godotenv.Read(m.envFile)
	if err != nil {
		m.logger.Debug("link status unavailable", "file", m.envFile, "error", err)
		return Info{Status: "unknown"}
	}
	status := env[EnvStatus]
	if status == "" {
		status = "unknown"
	}
	return Info{
		Status:  status,
		Type:    env[EnvType],
		IP:      env[EnvIP],
		Gateway: env[EnvGateway],
		MAC:     env[EnvMAC],
	}
}

// IsConnected reports whether the link is currently up.
func (m *Monitor) IsConnected() bool {
	return m.Info().Connected()
}

// MAC returns the raw hardware address from the env file, falling back to
// the configured interface.
func (m *Monitor) MAC() (string, error) {
	if mac := m.Info().MAC; mac != "" {
		return mac, nil
	}
	return m.ifaceAddr(m.iface)
}

// Config returns the link settings document.
func (m *Monitor) Config() map[string]any {
	if m.config == nil {
		return map[string]any{}
	}
	return m.config.Load()
}

func interfaceMAC(name string) (string, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	return ifi.HardwareAddr.String(), nil
}
