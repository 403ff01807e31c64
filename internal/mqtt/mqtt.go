// Package mqtt publishes lighting state and lifecycle events to MQTT and
// accepts control protocol messages on a command topic.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/aqualight/internal/logic"
)

// Topic names, relative to the configured prefix.
const (
	TopicState    = "state"
	TopicSystem   = "system"
	TopicCommand  = "command"
	TopicResponse = "response"
)

// Topics holds fully qualified topic names.
type Topics struct {
	State    string
	System   string
	Command  string
	Response string
}

// NewTopics qualifies every topic with prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		State:    prefix + "/" + TopicState,
		System:   prefix + "/" + TopicSystem,
		Command:  prefix + "/" + TopicCommand,
		Response: prefix + "/" + TopicResponse,
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishState sends the current channel levels (retained).
	// Returns error if publishing fails (should not crash the process).
	PublishState(state State) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// State is the lighting state at one instant.
type State struct {
	Timestamp time.Time
	Channels  []logic.Channel // active channels only
	PowerW    float64
}

// NewState captures the active channels of e.
func NewState(e *logic.Engine, ts time.Time) State {
	active := e.Active()
	channels := make([]logic.Channel, len(active))
	copy(channels, active)
	return State{Timestamp: ts, Channels: channels, PowerW: e.CurrentPower()}
}

// Changed reports whether any channel's mode or level differs from prev.
func (s State) Changed(prev State) bool {
	if len(s.Channels) != len(prev.Channels) {
		return true
	}
	for i := range s.Channels {
		a, b := &s.Channels[i], &prev.Channels[i]
		if a.Name != b.Name || a.Mode != b.Mode || a.Value != b.Value {
			return true
		}
	}
	return false
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatePayload represents the MQTT message payload for lighting state.
type StatePayload struct {
	Lights LightsPayload `json:"lights"`
}

// LightsPayload contains the per-channel levels.
type LightsPayload struct {
	Timestamp string         `json:"timestamp"`
	PowerW    float64        `json:"power_w"`
	Channels  []ChannelState `json:"channels"`
}

// ChannelState represents a single channel's state.
type ChannelState struct {
	Name  string  `json:"name"`
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
}

// FormatStatePayload creates the JSON payload for a state update.
func FormatStatePayload(state State) ([]byte, error) {
	channels := make([]ChannelState, len(state.Channels))
	for i, ch := range state.Channels {
		channels[i] = ChannelState{Name: ch.Name, Mode: ch.Mode.String(), Value: ch.Value}
	}
	payload := StatePayload{
		Lights: LightsPayload{
			Timestamp: state.Timestamp.UTC().Format(time.RFC3339),
			PowerW:    state.PowerW,
			Channels:  channels,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
