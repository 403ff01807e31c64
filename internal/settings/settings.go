// Package settings persists the engine state as a bounded JSON document.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/logic"
)

const (
	// MaxDocumentSize caps the encoded document, in bytes.
	MaxDocumentSize = 10000

	// FileName is the document's name inside the storage directory.
	FileName = "configFile.json"
)

var (
	ErrNotFound = errors.New("settings not found")
	ErrTooLarge = errors.New("settings document too large")
	ErrParse    = errors.New("settings document malformed")
)

// Document is the persisted form of a logic.Engine. Field names are stable
// and shared with the control protocol.
type Document struct {
	NumOfChannels int               `json:"numOfChannels"`
	PWMFrequency  uint32            `json:"PWMFrequency"`
	PWMGenerator  uint8             `json:"PWMGenerator"`
	NTPServer     string            `json:"NTPServer"`
	Timezone      int               `json:"timezone"`
	Channels      []ChannelDocument `json:"channels"`
}

// ChannelDocument is one channel of a Document. Times and Values are
// parallel arrays.
type ChannelDocument struct {
	Name              string    `json:"name"`
	Color             string    `json:"color"`
	Manual            bool      `json:"manual"`
	Moonlight         bool      `json:"moonlight"`
	MaxMoonlightValue float64   `json:"MaxMoonlightValue"`
	Pin               int       `json:"pin"`
	Power             float64   `json:"power"`
	Times             []uint32  `json:"times"`
	Values            []float64 `json:"values"`
}

// FromEngine builds the document for e. Every channel is included, active or
// not, so inactive channels keep their settings. Current levels are not
// persisted.
func FromEngine(e logic.Engine) Document {
	doc := Document{
		NumOfChannels: e.ActiveCount(),
		PWMFrequency:  e.Frequency,
		PWMGenerator:  uint8(e.Generator),
		NTPServer:     e.NTPServer,
		Timezone:      e.Timezone,
		Channels:      make([]ChannelDocument, logic.MaxChannels),
	}
	for i := range e.Channels {
		ch := &e.Channels[i]
		manual, moonlight := ch.Mode.Flags()
		cd := ChannelDocument{
			Name:              ch.Name,
			Color:             ch.Color,
			Manual:            manual,
			Moonlight:         moonlight,
			MaxMoonlightValue: ch.MaxMoonlightValue,
			Pin:               ch.Pin,
			Power:             ch.Power,
			Times:             make([]uint32, 0, ch.NumEntries()),
			Values:            make([]float64, 0, ch.NumEntries()),
		}
		for _, en := range ch.Schedule() {
			cd.Times = append(cd.Times, en.Time)
			cd.Values = append(cd.Values, en.Value)
		}
		doc.Channels[i] = cd
	}
	return doc
}

// Engine converts the document back to engine state. Any bound violation
// rejects the whole document with logic.ErrValidation.
func (d Document) Engine() (logic.Engine, error) {
	var e logic.Engine
	if err := e.SetActiveCount(d.NumOfChannels); err != nil {
		return logic.Engine{}, err
	}
	if len(d.Channels) > logic.MaxChannels {
		return logic.Engine{}, fmt.Errorf("%w: %d channels stored, at most %d", logic.ErrValidation, len(d.Channels), logic.MaxChannels)
	}
	if d.PWMFrequency == 0 {
		return logic.Engine{}, fmt.Errorf("%w: PWM frequency must be positive", logic.ErrValidation)
	}
	gen := logic.Generator(d.PWMGenerator)
	if !gen.Valid() {
		return logic.Engine{}, fmt.Errorf("%w: unknown PWM generator %d", logic.ErrValidation, d.PWMGenerator)
	}
	if !logic.ValidTimezone(d.Timezone) {
		return logic.Engine{}, fmt.Errorf("%w: timezone %d", logic.ErrValidation, d.Timezone)
	}
	e.Frequency = d.PWMFrequency
	e.Generator = gen
	e.NTPServer = d.NTPServer
	e.Timezone = d.Timezone

	for i, cd := range d.Channels {
		if err := cd.apply(&e.Channels[i]); err != nil {
			return logic.Engine{}, fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return e, nil
}

func (cd ChannelDocument) apply(ch *logic.Channel) error {
	if err := ch.SetName(cd.Name); err != nil {
		return err
	}
	if err := ch.SetColor(cd.Color); err != nil {
		return err
	}
	entries, err := Entries(cd.Times, cd.Values)
	if err != nil {
		return err
	}
	if err := ch.SetSchedule(entries); err != nil {
		return err
	}
	ch.Mode = logic.ModeFromFlags(cd.Manual, cd.Moonlight)
	ch.MaxMoonlightValue = cd.MaxMoonlightValue
	ch.Pin = cd.Pin
	ch.Power = cd.Power
	return nil
}

// Entries zips parallel time and value arrays into control points.
func Entries(times []uint32, values []float64) ([]logic.Entry, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d times but %d values", logic.ErrValidation, len(times), len(values))
	}
	if len(times) > logic.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries exceeds %d", logic.ErrValidation, len(times), logic.MaxEntries)
	}
	out := make([]logic.Entry, len(times))
	for i := range times {
		out[i] = logic.Entry{Time: times[i], Value: values[i]}
	}
	return out, nil
}

// Codec loads and saves engine state through a Storage.
type Codec struct {
	Storage Storage
	Name    string
}

// NewCodec creates a Codec storing FileName in s.
func NewCodec(s Storage) *Codec {
	return &Codec{Storage: s, Name: FileName}
}

// Encode serializes e.
func (c *Codec) Encode(e logic.Engine) ([]byte, error) {
	return json.Marshal(FromEngine(e))
}

// Decode parses and validates a document.
func (c *Codec) Decode(data []byte) (logic.Engine, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return logic.Engine{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc.Engine()
}

// Load reads the stored document.
func (c *Codec) Load() (logic.Engine, error) {
	size, err := c.Storage.Stat(c.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return logic.Engine{}, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}
	if err != nil {
		return logic.Engine{}, fmt.Errorf("stat %s: %w", c.Name, err)
	}
	if size > MaxDocumentSize {
		return logic.Engine{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, c.Name, size)
	}

	data, err := c.Storage.ReadFile(c.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return logic.Engine{}, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}
	if err != nil {
		return logic.Engine{}, fmt.Errorf("read %s: %w", c.Name, err)
	}
	if len(data) > MaxDocumentSize {
		return logic.Engine{}, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, c.Name, len(data))
	}
	return c.Decode(data)
}

// Save writes e. The document is fully encoded first; if it exceeds
// MaxDocumentSize nothing is written and the stored document is kept.
func (c *Codec) Save(e logic.Engine) error {
	data, err := c.Encode(e)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), MaxDocumentSize)
	}
	if err := c.Storage.WriteFile(c.Name, data); err != nil {
		return fmt.Errorf("write %s: %w", c.Name, err)
	}
	return nil
}

// Raw returns the stored document bytes as written.
func (c *Codec) Raw() ([]byte, error) {
	data, err := c.Storage.ReadFile(c.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}
	return data, err
}

// LoadOrDefault loads the stored state. If that fails for any reason the
// defaults are written and returned; the returned error then only reports a
// failure to write them.
func LoadOrDefault(c *Codec) (logic.Engine, error) {
	e, err := c.Load()
	if err == nil {
		return e, nil
	}
	log.WithError(err).Warn("settings: load failed, restoring defaults")

	e = Defaults()
	if err := c.Save(e); err != nil {
		return e, fmt.Errorf("save defaults: %w", err)
	}
	return e, nil
}
