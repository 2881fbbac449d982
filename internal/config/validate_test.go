package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// helper to build a normalized config quickly
func normalized(mut func(*Config)) *Config {
	cfg := &Config{}
	if mut != nil {
		mut(cfg)
	}
	Normalize(cfg)
	return cfg
}

// ---- tests ----

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := normalized(nil)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ESS != "dess" {
		t.Fatalf("expected default ess dess, got %q", cfg.ESS)
	}
	if cfg.MinInit() != DefaultMinInit {
		t.Fatalf("expected min init %d, got %d", DefaultMinInit, cfg.MinInit())
	}
}

func TestValidate_UnknownProfile(t *testing.T) {
	cfg := normalized(func(c *Config) { c.ESS = "xess" })

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unknown profile error, got nil")
	}
}

func TestValidate_PinCollisionDetected(t *testing.T) {
	cfg := normalized(func(c *Config) {
		c.Hardware.Relays = []string{"P8_12", "P8_11", "P8_16", "P9_28"} // P9_28 is a divider
	})

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected pin collision error, got nil")
	}
}

func TestValidate_WrongPinCount(t *testing.T) {
	cfg := normalized(func(c *Config) {
		c.Hardware.Analog = []string{"P9_14", "P9_16"}
	})

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected pin count error, got nil")
	}
}

func TestValidate_YearWindowInverted(t *testing.T) {
	cfg := normalized(func(c *Config) {
		c.Network.MinYear = 2030
		c.Network.MaxYear = 2020
	})

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected year window error, got nil")
	}
}

func TestValidate_BadReportURL(t *testing.T) {
	cfg := normalized(func(c *Config) { c.URL = "ftp://example.com" })

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected url error, got nil")
	}
}

func TestNormalize_ZeroMinInitKept(t *testing.T) {
	zero := 0
	cfg := normalized(func(c *Config) { c.MinInitSeconds = &zero })

	if cfg.MinInit() != 0 {
		t.Fatalf("explicit zero min init overwritten: got %d", cfg.MinInit())
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selftest.yaml")
	body := []byte("apikey: secret\ness: cess\ndebug: true\nserial:\n  timeout_ms: 800\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.APIKey != "secret" || cfg.ESS != "cess" || !cfg.Debug {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Serial.TimeoutMs != 800 {
		t.Fatalf("expected serial timeout 800, got %d", cfg.Serial.TimeoutMs)
	}
	if cfg.URL != DefaultURL {
		t.Fatalf("expected default url, got %q", cfg.URL)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if cfg == nil || cfg.ESS != DefaultESS {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoad_InvalidProfileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selftest.yaml")
	if err := os.WriteFile(path, []byte("ess: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}
