package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Profile keys accepted by `ess`.
var knownProfiles = map[string]struct{}{
	"dess": {},
	"cess": {},
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE PROFILE
	// ------------------------------------------------------------

	if _, ok := knownProfiles[cfg.ESS]; !ok {
		return fmt.Errorf("ess %q: unknown device profile (want dess or cess)", cfg.ESS)
	}

	// ------------------------------------------------------------
	// ENDPOINTS
	// ------------------------------------------------------------

	if err := validateHTTPS("url", cfg.URL); err != nil {
		return err
	}
	if err := validateHTTPS("network.probe_url", cfg.Network.ProbeURL); err != nil {
		return err
	}

	if cfg.Network.MinYear > cfg.Network.MaxYear {
		return fmt.Errorf(
			"network: min_year %d is after max_year %d",
			cfg.Network.MinYear,
			cfg.Network.MaxYear,
		)
	}

	// ------------------------------------------------------------
	// HARDWARE PIN GEOMETRY
	// ------------------------------------------------------------

	h := cfg.Hardware
	for _, g := range []struct {
		name string
		pins []string
		want int
	}{
		{"hardware.relays", h.Relays, 4},
		{"hardware.analog", h.Analog, 4},
		{"hardware.dividers", h.Dividers, 4},
		{"hardware.lcd.data", h.LCD.Data, 4},
	} {
		if len(g.pins) != g.want {
			return fmt.Errorf("%s: want %d pins, got %d", g.name, g.want, len(g.pins))
		}
	}

	// pin collision check across every output
	owner := make(map[string]string)
	claim := func(role, pin string) error {
		if pin == "" {
			return fmt.Errorf("%s: pin name required", role)
		}
		if prev, exists := owner[pin]; exists {
			return fmt.Errorf("pin collision: %s used by %s and %s", pin, prev, role)
		}
		owner[pin] = role
		return nil
	}
	for i, p := range h.Relays {
		if err := claim(fmt.Sprintf("relay %d", i+1), p); err != nil {
			return err
		}
	}
	for i, p := range h.Analog {
		if err := claim(fmt.Sprintf("analog %d", i+1), p); err != nil {
			return err
		}
	}
	for i, p := range h.Dividers {
		if err := claim(fmt.Sprintf("divider %d", i+1), p); err != nil {
			return err
		}
	}
	for i, p := range h.LCD.Data {
		if err := claim(fmt.Sprintf("lcd d%d", i+4), p); err != nil {
			return err
		}
	}
	for role, p := range map[string]string{
		"backlight":  h.Backlight,
		"lcd rs":     h.LCD.RS,
		"lcd rw":     h.LCD.RW,
		"lcd enable": h.LCD.Enable,
	} {
		if err := claim(role, p); err != nil {
			return err
		}
	}

	if strings.Count(h.LEDPath, "%d") != 1 {
		return fmt.Errorf("hardware.led_path %q: must contain exactly one %%d", h.LEDPath)
	}

	// ------------------------------------------------------------
	// SERIAL / MQTT
	// ------------------------------------------------------------

	if !strings.HasPrefix(cfg.Serial.Port, "/") {
		return fmt.Errorf("serial.port %q: absolute device path required", cfg.Serial.Port)
	}

	if cfg.MQTT.Broker != "" {
		u, err := url.Parse(cfg.MQTT.Broker)
		if err != nil || u.Host == "" {
			return fmt.Errorf("mqtt.broker %q: want scheme://host:port", cfg.MQTT.Broker)
		}
	}

	return nil
}

func validateHTTPS(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s %q: http(s) url required", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q: host required", key, raw)
	}
	return nil
}
