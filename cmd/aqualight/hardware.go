package main

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/aqualight/internal/config"
	"github.com/sweeney/aqualight/internal/gpio"
	"github.com/sweeney/aqualight/internal/logic"
	"github.com/sweeney/aqualight/internal/pwm"
)

// openBackends registers the host drivers and opens every PWM backend the
// board offers. A missing PCA9685 bus is not fatal: the settings may select
// native output. The returned cleanup releases the bus and /OE line.
func openBackends(cfg config.PWMConfig) (map[logic.Generator]pwm.Backend, func(), error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init host drivers: %w", err)
	}

	backends := map[logic.Generator]pwm.Backend{
		logic.GeneratorNative: pwm.NewNativeBackend(nativePin),
	}
	var closers []func() error

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		log.WithError(err).WithField("bus", cfg.I2CBus).Warn("pca9685 unavailable")
	} else {
		closers = append(closers, bus.Close)

		var oe gpio.Enabler
		if cfg.OELine >= 0 {
			en, err := gpio.NewRealEnabler(cfg.OEChip, cfg.OELine)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{"chip": cfg.OEChip, "line": cfg.OELine}).Warn("pca9685 /OE line unavailable")
			} else {
				oe = en
			}
		}
		backends[logic.GeneratorPCA9685] = pwm.NewPCA9685Backend(bus, cfg.PCA9685Address, oe)
	}

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.WithError(err).Warn("close hardware")
			}
		}
	}
	return backends, cleanup, nil
}

// nativePin resolves a channel pin number through the periph registry.
func nativePin(n int) pwm.Pin {
	p := gpioreg.ByName(strconv.Itoa(n))
	if p == nil {
		return nil
	}
	return p
}
