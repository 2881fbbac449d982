// Package hd44780 drives an HD44780-compatible character LCD in 4-bit mode
// over plain GPIO outputs.
package hd44780

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Pin is a digital output. periph's gpio.PinOut satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

// Geometry of the 2x16 panel.
const (
	Rows    = 2
	Columns = 16
)

// ---- command set ----

const (
	cmdClear        byte = 0x01
	cmdEntryMode    byte = 0x06 // increment, no shift
	cmdDisplayOn    byte = 0x0C // display on, cursor off, blink off
	cmdFunction4Bit byte = 0x28 // 4-bit bus, 2 lines, 5x8 font
	cmdSetDDRAM     byte = 0x80
)

var rowOffsets = [Rows]byte{0x00, 0x40}

// Dev is one display. Not safe for concurrent use; hardware.IO serializes access.
type Dev struct {
	rs, rw, en Pin
	data       [4]Pin // d4..d7

	// sleep is swapped in tests.
	sleep func(time.Duration)
}

// New wires the pins and runs the 4-bit initialization sequence.
func New(rs, rw, en Pin, data [4]Pin) (*Dev, error) {
	for i, p := range append([]Pin{rs, rw, en}, data[:]...) {
		if p == nil {
			return nil, fmt.Errorf("hd44780: pin %d missing", i)
		}
	}
	d := &Dev{rs: rs, rw: rw, en: en, data: data, sleep: time.Sleep}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init() error {
	// write-only wiring
	if err := d.rw.Out(gpio.Low); err != nil {
		return fmt.Errorf("hd44780: rw: %w", err)
	}
	if err := d.rs.Out(gpio.Low); err != nil {
		return fmt.Errorf("hd44780: rs: %w", err)
	}

	d.sleep(50 * time.Millisecond)

	// Force 8-bit mode three times, then switch to 4-bit.
	for _, n := range []byte{0x03, 0x03, 0x03, 0x02} {
		if err := d.nibble(n); err != nil {
			return err
		}
		d.sleep(5 * time.Millisecond)
	}

	for _, c := range []byte{cmdFunction4Bit, cmdDisplayOn, cmdEntryMode, cmdClear} {
		if err := d.command(c); err != nil {
			return err
		}
	}
	d.sleep(2 * time.Millisecond)
	return nil
}

// WriteAt places the cursor and prints text, clipped at the row end.
func (d *Dev) WriteAt(row, col int, text string) error {
	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return fmt.Errorf("hd44780: position %d,%d outside %dx%d", row, col, Rows, Columns)
	}
	if err := d.command(cmdSetDDRAM | (rowOffsets[row] + byte(col))); err != nil {
		return err
	}

	if room := Columns - col; len(text) > room {
		text = text[:room]
	}
	for i := 0; i < len(text); i++ {
		if err := d.write(text[i], true); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) command(c byte) error {
	return d.write(c, false)
}

func (d *Dev) write(b byte, isData bool) error {
	if err := d.rs.Out(gpio.Level(isData)); err != nil {
		return fmt.Errorf("hd44780: rs: %w", err)
	}
	if err := d.nibble(b >> 4); err != nil {
		return err
	}
	return d.nibble(b & 0x0F)
}

func (d *Dev) nibble(n byte) error {
	var errs []error
	for i, p := range d.data {
		errs = append(errs, p.Out(gpio.Level(n&(1<<i) != 0)))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("hd44780: data: %w", err)
	}

	// latch on the falling edge of enable
	if err := d.en.Out(gpio.High); err != nil {
		return fmt.Errorf("hd44780: enable: %w", err)
	}
	d.sleep(time.Microsecond)
	if err := d.en.Out(gpio.Low); err != nil {
		return fmt.Errorf("hd44780: enable: %w", err)
	}
	d.sleep(50 * time.Microsecond)
	return nil
}
