package pwm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/sweeney/aqualight/internal/gpio"
)

// PCA9685 registers and bits.
const (
	regMode1     = 0x00
	regMode2     = 0x01
	regLED0OnL   = 0x06
	regAllOffH   = 0xFD
	regPrescale  = 0xFE
	mode1Restart = 0x80
	mode1AI      = 0x20
	mode1Sleep   = 0x10
	mode1AllCall = 0x01
	mode2OutDrv  = 0x04
	ledFullBit   = 0x10

	pcaOscillatorHz = 25000000
	pcaSteps        = 4096
)

const (
	// DefaultPCA9685Address is the chip address with all A0-A5 pins low.
	DefaultPCA9685Address = 0x40

	// PCA9685Outputs is the number of outputs on one chip.
	PCA9685Outputs = 16
)

// PCA9685Backend drives a PCA9685 16-channel PWM expander. Engine channel i
// maps to LED output i. Only register writes are issued.
type PCA9685Backend struct {
	dev   *i2c.Dev
	oe    gpio.Enabler
	sleep func(time.Duration)
}

// NewPCA9685Backend creates a backend on bus at addr. oe may be nil when the
// chip's /OE input is tied low.
func NewPCA9685Backend(bus i2c.Bus, addr uint16, oe gpio.Enabler) *PCA9685Backend {
	return &PCA9685Backend{
		dev:   &i2c.Dev{Bus: bus, Addr: addr},
		oe:    oe,
		sleep: time.Sleep,
	}
}

func (p *PCA9685Backend) String() string {
	return fmt.Sprintf("pca9685@%#02x", p.dev.Addr)
}

// Prescale returns the PRE_SCALE register value for a carrier of freqHz.
func Prescale(freqHz uint32) byte {
	if freqHz == 0 {
		return 255
	}
	v := math.Round(pcaOscillatorHz/(pcaSteps*float64(freqHz))) - 1
	switch {
	case v < 3:
		return 3
	case v > 255:
		return 255
	}
	return byte(v)
}

// Configure sets the carrier frequency. The prescaler is only writable in
// sleep mode, so the chip is put to sleep, reprogrammed and restarted with
// register auto-increment enabled. Outputs are disabled meanwhile when an
// output-enable line is wired.
func (p *PCA9685Backend) Configure(freqHz uint32) error {
	if freqHz == 0 {
		return errors.New("pca9685: frequency must be positive")
	}
	if p.oe != nil {
		if err := p.oe.SetEnabled(false); err != nil {
			return fmt.Errorf("pca9685: disable outputs: %w", err)
		}
	}

	steps := [][]byte{
		{regMode1, mode1Sleep | mode1AllCall},
		{regPrescale, Prescale(freqHz)},
		{regMode2, mode2OutDrv},
		{regMode1, mode1AI | mode1AllCall},
	}
	for _, w := range steps {
		if err := p.dev.Tx(w, nil); err != nil {
			return fmt.Errorf("pca9685: write reg %#02x: %w", w[0], err)
		}
	}
	// Oscillator needs 500us to stabilise before RESTART.
	p.sleep(500 * time.Microsecond)
	if err := p.dev.Tx([]byte{regMode1, mode1Restart | mode1AI | mode1AllCall}, nil); err != nil {
		return fmt.Errorf("pca9685: restart: %w", err)
	}

	if p.oe != nil {
		if err := p.oe.SetEnabled(true); err != nil {
			return fmt.Errorf("pca9685: enable outputs: %w", err)
		}
	}
	return nil
}

// Push writes all outputs in a single auto-increment transaction starting at
// LED0_ON_L. Outputs up to the highest channel that are not listed are
// switched fully off; a channel listed twice takes its last entry.
func (p *PCA9685Backend) Push(outputs []Output) error {
	if len(outputs) == 0 {
		return nil
	}
	top := 0
	for _, o := range outputs {
		if o.Channel < 0 || o.Channel >= PCA9685Outputs {
			return fmt.Errorf("pca9685: channel %d outside [0, %d)", o.Channel, PCA9685Outputs)
		}
		if o.Channel > top {
			top = o.Channel
		}
	}

	buf := make([]byte, 1+4*(top+1))
	buf[0] = regLED0OnL
	for i := 0; i <= top; i++ {
		putLED(buf[1+4*i:], 0)
	}
	for _, o := range outputs {
		putLED(buf[1+4*o.Channel:], o.Percent)
	}
	return p.dev.Tx(buf, nil)
}

// Close switches every output off and disables the outputs.
func (p *PCA9685Backend) Close() error {
	var errs []error
	if err := p.dev.Tx([]byte{regAllOffH, ledFullBit}, nil); err != nil {
		errs = append(errs, fmt.Errorf("pca9685: all off: %w", err))
	}
	if p.oe != nil {
		if err := p.oe.SetEnabled(false); err != nil {
			errs = append(errs, err)
		}
		if err := p.oe.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// putLED encodes ON_L, ON_H, OFF_L, OFF_H for one output. 0% and 100% use the
// full-off and full-on bits so the output never glitches.
func putLED(b []byte, percent float64) {
	b[0], b[1], b[2], b[3] = 0, 0, 0, 0
	off := Counts(percent)
	switch off {
	case 0:
		b[3] = ledFullBit
	case pcaSteps - 1:
		b[1] = ledFullBit
	default:
		b[2] = byte(off)
		b[3] = byte(off >> 8)
	}
}

// Counts converts a percentage to the 12-bit OFF count, [0, 4095].
func Counts(percent float64) uint16 {
	switch {
	case math.IsNaN(percent), percent <= 0:
		return 0
	case percent >= 100:
		return pcaSteps - 1
	}
	return uint16(math.Round(percent / 100 * (pcaSteps - 1)))
}
