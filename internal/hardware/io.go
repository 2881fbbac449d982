// Package hardware is the façade over the gateway's outputs: relays, analog outputs
// with their range dividers, user LEDs, and the character display.
package hardware

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Channels is the number of relays, analog outputs and LEDs on the board.
const Channels = 4

// PWMFrequency drives analog outputs and the backlight.
const PWMFrequency = 5 * physic.KiloHertz

// Divider levels: high selects voltage scaling, low selects current scaling.
const (
	DividerVoltage = gpio.High
	DividerCurrent = gpio.Low
)

// Pin is a digital output. periph's gpio.PinOut satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// PWMPin is a duty-cycle output. periph's gpio.PinOut satisfies it.
type PWMPin interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// TextDisplay writes text at a row/column position.
type TextDisplay interface {
	WriteAt(row, col int, text string) error
}

// Pins is the physical pin set owned by IO.
type Pins struct {
	Relays    [Channels]Pin
	Analog    [Channels]PWMPin
	Dividers  [Channels]Pin
	Backlight PWMPin
}

// ErrChannel is returned for an output index outside 1..Channels.
var ErrChannel = errors.New("hardware: channel out of range")

// IO owns the pin set and the display.
// Display access is serialized by mu, which the status renderer shares with callers.
type IO struct {
	pins    Pins
	lcd     TextDisplay
	ledPath string // printf pattern taking the zero-based LED index
	log     *zap.Logger

	mu sync.Mutex
}

func New(pins Pins, lcd TextDisplay, ledPath string, log *zap.Logger) *IO {
	if log == nil {
		log = zap.NewNop()
	}
	return &IO{
		pins:    pins,
		lcd:     lcd,
		ledPath: ledPath,
		log:     log,
	}
}

// SetRelay drives relay n (1-based). Setting the current level again is harmless.
func (io *IO) SetRelay(n int, on bool) error {
	if err := checkChannel(n); err != nil {
		return err
	}
	if err := io.pins.Relays[n-1].Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("hardware: relay %d: %w", n, err)
	}
	return nil
}

// SetAnalog sets analog output n (1-based) to percent of full scale.
// The divider is always forced to voltage scaling first.
func (io *IO) SetAnalog(n int, percent float64) error {
	if err := checkChannel(n); err != nil {
		return err
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("hardware: analog %d: percent %.1f out of range 0..100", n, percent)
	}
	if err := io.pins.Dividers[n-1].Out(DividerVoltage); err != nil {
		return fmt.Errorf("hardware: analog %d divider: %w", n, err)
	}
	if err := io.pins.Analog[n-1].PWM(duty(percent), PWMFrequency); err != nil {
		return fmt.Errorf("hardware: analog %d: %w", n, err)
	}
	return nil
}

// SetLED switches user LED n (1-based). I/O failures are logged and ignored.
func (io *IO) SetLED(n int, on bool) {
	if err := checkChannel(n); err != nil {
		io.log.Error("led switch failed", zap.Int("led", n), zap.Error(err))
		return
	}
	val := []byte("0")
	if on {
		val = []byte("1")
	}
	path := fmt.Sprintf(io.ledPath, n-1)
	if err := os.WriteFile(path, val, 0o644); err != nil {
		io.log.Error("led switch failed", zap.Int("led", n), zap.String("path", path), zap.Error(err))
	}
}

// WriteAt writes to the display under the display lock.
func (io *IO) WriteAt(row, col int, text string) error {
	io.mu.Lock()
	defer io.mu.Unlock()

	if io.lcd == nil {
		return errors.New("hardware: no display")
	}
	return io.lcd.WriteAt(row, col, text)
}

// SetBacklight dims the display backlight to percent.
func (io *IO) SetBacklight(percent float64) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("hardware: backlight percent %.1f out of range 0..100", percent)
	}
	if io.pins.Backlight == nil {
		return errors.New("hardware: no backlight pin")
	}
	return io.pins.Backlight.PWM(duty(percent), PWMFrequency)
}

// ResetSafe turns every output off: LEDs off, relays open, analog outputs at 0%
// with the divider on voltage. Failures are logged and never stop the remaining writes.
func (io *IO) ResetSafe() {
	for n := 1; n <= Channels; n++ {
		io.SetLED(n, false)
	}
	for n := 1; n <= Channels; n++ {
		if err := io.SetRelay(n, false); err != nil {
			io.log.Error("safe state: relay", zap.Int("relay", n), zap.Error(err))
		}
	}
	// Duty and divider are written separately so a failing divider never
	// leaves an analog output driving.
	for i := 0; i < Channels; i++ {
		if err := io.pins.Analog[i].PWM(0, PWMFrequency); err != nil {
			io.log.Error("safe state: analog", zap.Int("analog", i+1), zap.Error(err))
		}
		if err := io.pins.Dividers[i].Out(DividerVoltage); err != nil {
			io.log.Error("safe state: divider", zap.Int("analog", i+1), zap.Error(err))
		}
	}
}

func checkChannel(n int) error {
	if n < 1 || n > Channels {
		return fmt.Errorf("%w: %d", ErrChannel, n)
	}
	return nil
}

func duty(percent float64) gpio.Duty {
	return gpio.Duty(percent / 100 * float64(gpio.DutyMax))
}
