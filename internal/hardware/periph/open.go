// Package periph binds hardware.IO to real board pins through periph.io.
package periph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/essgate/selftest/internal/config"
	"github.com/essgate/selftest/internal/hardware"
	"github.com/essgate/selftest/internal/hardware/hd44780"
)

// ErrAlreadyOpen is returned by a second Open in the same process.
var ErrAlreadyOpen = errors.New("periph: hardware already opened")

var opened atomic.Bool

// Open initializes the host drivers, resolves every configured pin and
// returns the process-wide hardware handle. It succeeds at most once per process.
func Open(cfg config.HardwareConfig, log *zap.Logger) (*hardware.IO, error) {
	if !opened.CompareAndSwap(false, true) {
		return nil, ErrAlreadyOpen
	}

	if _, err := host.Init(); err != nil {
		opened.Store(false)
		return nil, fmt.Errorf("periph: host init: %w", err)
	}

	io, err := build(cfg, gpioreg.ByName, log)
	if err != nil {
		opened.Store(false)
		return nil, err
	}
	return io, nil
}

// lookup resolves a pin name; gpioreg.ByName in production.
type lookup func(name string) gpio.PinIO

func build(cfg config.HardwareConfig, byName lookup, log *zap.Logger) (*hardware.IO, error) {
	var missing []string
	pin := func(name string) gpio.PinIO {
		p := byName(name)
		if p == nil {
			missing = append(missing, name)
		}
		return p
	}

	var pins hardware.Pins
	for i := 0; i < hardware.Channels; i++ {
		pins.Relays[i] = pin(cfg.Relays[i])
		pins.Analog[i] = pin(cfg.Analog[i])
		pins.Dividers[i] = pin(cfg.Dividers[i])
	}
	pins.Backlight = pin(cfg.Backlight)

	rs, rw, en := pin(cfg.LCD.RS), pin(cfg.LCD.RW), pin(cfg.LCD.Enable)
	var data [4]hd44780.Pin
	for i := range data {
		data[i] = pin(cfg.LCD.Data[i])
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("periph: unknown pins %v", missing)
	}

	lcd, err := hd44780.New(rs, rw, en, data)
	if err != nil {
		return nil, fmt.Errorf("periph: display: %w", err)
	}

	io := hardware.New(pins, lcd, cfg.LEDPath, log.Named("hardware"))

	// light on, matching the panel's power-up look
	if err := io.SetBacklight(70); err != nil {
		log.Warn("backlight init failed", zap.Error(err))
	}
	return io, nil
}
