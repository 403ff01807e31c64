// Package status provides a thread-safe status tracker for the aqualight daemon.
// The control loop writes it; HTTP handlers and MQTT publishing read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/aqualight/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
	DataDir        string
	PCA9685Address uint16
	RestartMode    string
}

// ChannelStatus is one active channel as last computed.
type ChannelStatus struct {
	Name  string
	Color string
	Mode  logic.Mode
	Value float64 // percent
	Power float64 // rated watts at 100%
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Channels      []ChannelStatus
	Power         float64 // estimated draw, watts
	Generator     logic.Generator
	Frequency     uint32
	Timezone      int
	LastPush      time.Time
	Pushes        int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the engine state and push statistics.
// Called from runLoop after every tick and request.
func (t *Tracker) Update(e *logic.Engine, lastPush time.Time, pushes int) {
	active := e.Active()
	channels := make([]ChannelStatus, len(active))
	for i, ch := range active {
		channels[i] = ChannelStatus{
			Name:  ch.Name,
			Color: ch.Color,
			Mode:  ch.Mode,
			Value: ch.Value,
			Power: ch.Power,
		}
	}
	power := e.CurrentPower()

	t.mu.Lock()
	t.snap.Channels = channels
	t.snap.Power = power
	t.snap.Generator = e.Generator
	t.snap.Frequency = e.Frequency
	t.snap.Timezone = e.Timezone
	t.snap.LastPush = lastPush
	t.snap.Pushes = pushes
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
