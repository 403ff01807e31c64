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
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Channels      []ChannelJSON `json:"channels"`
	PowerW        float64       `json:"power_w"`
	PWM           PWMJSON       `json:"pwm"`
	Timezone      int           `json:"timezone"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Mode   string  `json:"mode"`
	Value  float64 `json:"value"`
	PowerW float64 `json:"power_w"`
}

// PWMJSON reports the output hardware.
type PWMJSON struct {
	Generator   string `json:"generator"`
	FrequencyHz uint32 `json:"frequency_hz"`
	LastPush    string `json:"last_push,omitempty"`
	Pushes      int    `json:"pushes"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	DataDir        string `json:"data_dir"`
	PCA9685Address uint16 `json:"pca9685_address"`
	RestartMode    string `json:"restart_mode"`
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		channels[i] = ChannelJSON{
			Name:   ch.Name,
			Color:  ch.Color,
			Mode:   ch.Mode.String(),
			Value:  ch.Value,
			PowerW: ch.Value / 100 * ch.Power,
		}
	}

	pwm := PWMJSON{
		Generator:   snap.Generator.String(),
		FrequencyHz: snap.Frequency,
		Pushes:      snap.Pushes,
	}
	if !snap.LastPush.IsZero() {
		pwm.LastPush = snap.LastPush.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		Channels:      channels,
		PowerW:        snap.Power,
		PWM:           pwm,
		Timezone:      snap.Timezone,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			DataDir:        snap.Config.DataDir,
			PCA9685Address: snap.Config.PCA9685Address,
			RestartMode:    snap.Config.RestartMode,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
