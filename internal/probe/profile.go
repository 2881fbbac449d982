package probe

import (
	"fmt"
	"time"
)

// Profile is the serial link and register geometry for one storage system type.
// Immutable for a run.
type Profile struct {
	Key string

	Port     string
	BaudRate int
	DataBits int
	Parity   string // "N", "E", "O"
	StopBits int
	Timeout  time.Duration

	UnitID  uint8
	Address uint16
	Count   uint16
	Retries int
}

// deviceGeometry holds what differs between profiles.
type deviceGeometry struct {
	baudRate int
	unitID   uint8
	address  uint16
}

var geometries = map[string]deviceGeometry{
	"dess": {baudRate: 9600, unitID: 4, address: 10143},
	"cess": {baudRate: 19200, unitID: 100, address: 0x1402},
}

// LinkConfig is what the caller controls regardless of profile.
type LinkConfig struct {
	Port    string
	Timeout time.Duration
	Retries int
}

// ProfileFor builds the profile selected by key ("dess" or "cess").
func ProfileFor(key string, link LinkConfig) (Profile, error) {
	g, ok := geometries[key]
	if !ok {
		return Profile{}, fmt.Errorf("probe: unknown device profile %q", key)
	}
	if link.Timeout <= 0 {
		link.Timeout = 500 * time.Millisecond
	}
	if link.Retries < 0 {
		link.Retries = 0
	}

	return Profile{
		Key:      key,
		Port:     link.Port,
		BaudRate: g.baudRate,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		Timeout:  link.Timeout,
		UnitID:   g.unitID,
		Address:  g.address,
		Count:    1,
		Retries:  link.Retries,
	}, nil
}
