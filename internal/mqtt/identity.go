package mqtt

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
)

// ConfigReader is the part of the messaging config store identity needs.
type ConfigReader interface {
	GetString(key, def string) string
	GetStrings(key string, def []string) []string
}

// Identity holds everything derived once at startup from the hardware
// address and the messaging store. It is never modified afterwards.
type Identity struct {
	ClientID      string
	MAC           string
	WillTopic     string
	WillPayload   []byte
	StatusTopic   string
	CommandTopic  string
	ResponseTopic string
	Subscriptions []string
}

// NewIdentity derives the session identity. mac is the normalized hardware
// address (may be empty); fallbackID is used for the client id when it is.
// The command topic is appended to the subscriptions if not listed.
func NewIdentity(mac, fallbackID, commandTopic string, cfg ConfigReader) (Identity, error) {
	clientID := strings.ReplaceAll(mac, ":", "")
	if clientID == "" {
		clientID = fallbackID
	}
	if clientID == "" {
		return Identity{}, errors.New("identity: no mac and no fallback id")
	}

	base := "sensor/" + clientID
	will, err := json.Marshal(FormatStatus(StatusOffline, mac, nil))
	if err != nil {
		return Identity{}, err
	}

	respKey := mac
	if respKey == "" {
		respKey = clientID
	}

	subs := slices.Clone(cfg.GetStrings("subscribe_topics", nil))
	if commandTopic != "" && !slices.Contains(subs, commandTopic) {
		subs = append(subs, commandTopic)
	}

	return Identity{
		ClientID:      clientID,
		MAC:           mac,
		WillTopic:     cfg.GetString("lwt_topic", base+"/status"),
		WillPayload:   will,
		StatusTopic:   cfg.GetString("status_topic", base+"/status"),
		CommandTopic:  commandTopic,
		ResponseTopic: "sensor/response/" + respKey + "/config",
		Subscriptions: subs,
	}, nil
}

// clone returns a deep copy so callers cannot mutate the session's identity.
func (id Identity) clone() Identity {
	id.WillPayload = slices.Clone(id.WillPayload)
	id.Subscriptions = slices.Clone(id.Subscriptions)
	return id
}
