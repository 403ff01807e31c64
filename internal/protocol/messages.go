// Package protocol implements the control protocol spoken by the web UI and
// the MQTT command topic: JSON messages tagged with an integer id.
package protocol

// Message ids. Each view request has a paired response id.
const (
	IDRequestManual   = 0
	IDManualView      = 1
	IDUpdateManual    = 2
	IDRequestSchedule = 10
	IDScheduleView    = 11
	IDSaveSchedule    = 12
	IDRequestSettings = 20
	IDSettingsView    = 21
	IDSaveSettings    = 22
	IDRestart         = 50
	IDFactoryReset    = 51
)

// Request is an inbound message. The set of implementations is closed.
type Request interface {
	requestID() int
}

// Response is an outbound message. The set of implementations is closed.
type Response interface {
	responseID() int
}

// ManualChannel is one row of the manual view and of an update.
type ManualChannel struct {
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Manual    bool    `json:"manual"`
	Moonlight bool    `json:"moonlight"`
	Value     float64 `json:"value"`
}

// ScheduleChannel is one channel of the schedule view and of a save.
type ScheduleChannel struct {
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Moonlight bool      `json:"moonlight"`
	Times     []uint32  `json:"times"`
	Values    []float64 `json:"values"`
}

// SettingsChannel is one channel of the settings view and of a save.
type SettingsChannel struct {
	Name              string  `json:"name"`
	Color             string  `json:"color"`
	Moonlight         bool    `json:"moonlight"`
	MaxMoonlightValue float64 `json:"MaxMoonlightValue"`
	Pin               int     `json:"pin"`
	Power             float64 `json:"power"`
}

// Requests.
type (
	RequestManual struct{}

	// UpdateManual sets mode and level of every active channel not in
	// moonlight mode. Channels[i] addresses engine channel i.
	UpdateManual struct {
		Channels []ManualChannel `json:"channels"`
	}

	RequestSchedule struct{}

	// SaveSchedule replaces the schedule of every active channel not in
	// moonlight mode.
	SaveSchedule struct {
		Channels []ScheduleChannel `json:"channels"`
	}

	RequestSettings struct{}

	SaveSettings struct {
		NumOfChannels int               `json:"numOfChannels"`
		Timezone      int               `json:"timezone"`
		PWMFrequency  uint32            `json:"PWMFrequency"`
		PWMGenerator  uint8             `json:"PWMGenerator"`
		Channels      []SettingsChannel `json:"channels"`
	}

	Restart struct{}

	FactoryReset struct{}
)

func (RequestManual) requestID() int   { return IDRequestManual }
func (UpdateManual) requestID() int    { return IDUpdateManual }
func (RequestSchedule) requestID() int { return IDRequestSchedule }
func (SaveSchedule) requestID() int    { return IDSaveSchedule }
func (RequestSettings) requestID() int { return IDRequestSettings }
func (SaveSettings) requestID() int    { return IDSaveSettings }
func (Restart) requestID() int         { return IDRestart }
func (FactoryReset) requestID() int    { return IDFactoryReset }

// Responses.
type (
	ManualView struct {
		Channels []ManualChannel `json:"channels"`
	}

	// ScheduleView reports Time as local seconds since midnight.
	ScheduleView struct {
		Time            uint32            `json:"time"`
		MaxNumOfEntries int               `json:"maxNumOfEntries"`
		Channels        []ScheduleChannel `json:"channels"`
	}

	// SettingsView reports Time as Unix epoch seconds and carries every
	// channel, active or not.
	SettingsView struct {
		NumOfChannels    int               `json:"numOfChannels"`
		MaxNumOfChannels int               `json:"maxNumOfChannels"`
		Timezone         int               `json:"timezone"`
		Time             uint64            `json:"time"`
		PWMFrequency     uint32            `json:"PWMFrequency"`
		PWMGenerator     uint8             `json:"PWMGenerator"`
		CurrentPower     float64           `json:"currentPower"`
		Channels         []SettingsChannel `json:"channels"`
	}
)

func (ManualView) responseID() int   { return IDManualView }
func (ScheduleView) responseID() int { return IDScheduleView }
func (SettingsView) responseID() int { return IDSettingsView }
