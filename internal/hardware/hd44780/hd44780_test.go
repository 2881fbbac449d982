package hd44780

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// bus records every byte latched by the enable pin.
type bus struct {
	rs    gpio.Level
	data  [4]gpio.Level
	half  *byte
	bytes []latched
}

type latched struct {
	b    byte
	data bool
}

type pin struct {
	set func(gpio.Level)
}

func (p pin) Out(l gpio.Level) error {
	p.set(l)
	return nil
}

func newBus() (*bus, Pin, Pin, Pin, [4]Pin) {
	b := &bus{}
	rs := pin{func(l gpio.Level) { b.rs = l }}
	rw := pin{func(gpio.Level) {}}
	en := pin{func(l gpio.Level) {
		if l == gpio.Low {
			return
		}
		var n byte
		for i, v := range b.data {
			if v {
				n |= 1 << i
			}
		}
		if b.half == nil {
			b.half = &n
			return
		}
		b.bytes = append(b.bytes, latched{b: *b.half<<4 | n, data: bool(b.rs)})
		b.half = nil
	}}
	var data [4]Pin
	for i := range data {
		i := i
		data[i] = pin{func(l gpio.Level) { b.data[i] = l }}
	}
	return b, rs, rw, en, data
}

func newDev(t *testing.T) (*Dev, *bus) {
	t.Helper()
	b, rs, rw, en, data := newBus()
	d := &Dev{rs: rs, rw: rw, en: en, data: data, sleep: func(time.Duration) {}}
	require.NoError(t, d.init())
	b.bytes = nil
	b.half = nil
	return d, b
}

func TestWriteAt_SecondRowAddressAndText(t *testing.T) {
	d, b := newDev(t)

	require.NoError(t, d.WriteAt(1, 0, "XX-"))

	require.Len(t, b.bytes, 4)
	assert.Equal(t, latched{b: 0xC0, data: false}, b.bytes[0])
	assert.Equal(t, latched{b: 'X', data: true}, b.bytes[1])
	assert.Equal(t, latched{b: 'X', data: true}, b.bytes[2])
	assert.Equal(t, latched{b: '-', data: true}, b.bytes[3])
}

func TestWriteAt_ClipsAtRowEnd(t *testing.T) {
	d, b := newDev(t)

	require.NoError(t, d.WriteAt(0, 14, "abcdef"))

	// one command + two characters
	require.Len(t, b.bytes, 3)
	assert.Equal(t, byte(0x80|14), b.bytes[0].b)
}

func TestWriteAt_RejectsOutOfRange(t *testing.T) {
	d, _ := newDev(t)

	assert.Error(t, d.WriteAt(2, 0, "x"))
	assert.Error(t, d.WriteAt(0, 16, "x"))
}

func TestNew_MissingPin(t *testing.T) {
	_, rs, rw, _, data := newBus()

	_, err := New(rs, rw, nil, data)
	assert.Error(t, err)
}
