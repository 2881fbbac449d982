package modbus

import (
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"

	"github.com/essgate/selftest/internal/probe"
)

// Client implements probe.Client over Modbus RTU on a serial line.
// One handler per probe; the connection is closed by Close.
type Client struct {
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// Dial opens the serial port described by the profile. ONE attempt per call.
func Dial(p probe.Profile) (probe.Client, error) {
	if p.Port == "" {
		return nil, errors.New("probe modbus: port required")
	}

	h := modbus.NewRTUClientHandler(p.Port)
	h.Config = serial.Config{
		Address:  p.Port,
		BaudRate: p.BaudRate,
		DataBits: p.DataBits,
		StopBits: p.StopBits,
		Parity:   p.Parity,
		Timeout:  p.Timeout,
	}
	h.SlaveId = p.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("probe modbus: open %s: %w", p.Port, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the serial port.
func (c *Client) Close() error {
	if c == nil || c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ReadHoldingRegisters issues FC 3 and unpacks big-endian registers.
func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, errors.New("modbus: read-registers payload length not even")
	}
	return unpackRegisters(raw), nil
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
