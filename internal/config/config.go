package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the gateway keeps its self-test configuration.
const DefaultPath = "/etc/selftest.yaml"

type Config struct {
	// ---- remote monitor ----
	URL    string `yaml:"url"`
	APIKey string `yaml:"apikey"`

	// ---- device ----
	ESS   string `yaml:"ess"`
	Debug bool   `yaml:"debug"`

	Logging     LoggingConfig  `yaml:"logging"`
	Network     NetworkConfig  `yaml:"network"`
	Serial      SerialConfig   `yaml:"serial"`
	Hardware    HardwareConfig `yaml:"hardware"`
	Actions     ActionsConfig  `yaml:"actions"`
	PackageLock string         `yaml:"package_lock"`
	Tunnel      TunnelConfig   `yaml:"tunnel"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
	Display     DisplayConfig  `yaml:"display"`
	Report      ReportConfig   `yaml:"report"`

	MinInitSeconds *int `yaml:"min_init_seconds"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// ---- NETWORK / CLOCK ----

type NetworkConfig struct {
	Interface      string `yaml:"interface"`
	ProbeURL       string `yaml:"probe_url"`
	ProbeTimeoutMs int    `yaml:"probe_timeout_ms"`
	MinYear        int    `yaml:"min_year"`
	MaxYear        int    `yaml:"max_year"`
}

// ---- SERIAL BUS ----

type SerialConfig struct {
	Port       string `yaml:"port"`
	Alternates string `yaml:"alternates"` // glob, e.g. /dev/ttyUSB*
	LockDir    string `yaml:"lock_dir"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	Retries    int    `yaml:"retries"`
}

// ---- HARDWARE PINS ----

type HardwareConfig struct {
	Relays    []string  `yaml:"relays"`
	Analog    []string  `yaml:"analog"`
	Dividers  []string  `yaml:"dividers"`
	Backlight string    `yaml:"backlight"`
	LEDPath   string    `yaml:"led_path"` // printf pattern with the LED index
	LCD       LCDConfig `yaml:"lcd"`
}

type LCDConfig struct {
	RS     string   `yaml:"rs"`
	RW     string   `yaml:"rw"`
	Enable string   `yaml:"enable"`
	Data   []string `yaml:"data"` // d4..d7
}

// ---- SUBPROCESS ACTIONS ----

type ActionsConfig struct {
	DHCPRenew   CommandConfig `yaml:"dhcp_renew"`
	TimeSync    CommandConfig `yaml:"time_sync"`
	NotifyReady CommandConfig `yaml:"notify_ready"`
	Update      CommandConfig `yaml:"update"`
	LockHolder  CommandConfig `yaml:"lock_holder"`
}

type CommandConfig struct {
	Cmd       string   `yaml:"cmd"`
	Args      []string `yaml:"args"`
	TimeoutMs int      `yaml:"timeout_ms"`
}

// ---- TUNNEL ----

type TunnelConfig struct {
	DomainFile string        `yaml:"domain_file"`
	Start      CommandConfig `yaml:"start"`
	Stop       CommandConfig `yaml:"stop"`
}

// ---- MQTT (optional) ----

type MQTTConfig struct {
	Broker    string `yaml:"broker"` // empty disables announcing
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- STATUS DISPLAY ----

type DisplayConfig struct {
	Title             string `yaml:"title"`
	TickMs            int    `yaml:"tick_ms"`
	Ticks             int    `yaml:"ticks"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

// ---- REPORT ----

type ReportConfig struct {
	TimeoutMs int    `yaml:"timeout_ms"`
	AppID     string `yaml:"app_id"` // machine id is hashed with this key
}

// Load reads a YAML config file, then normalizes and validates it.
// A missing file yields the defaults together with an error wrapping os.ErrNotExist,
// so callers may log it and carry on.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	raw, err := os.ReadFile(path)
	if err != nil {
		Normalize(cfg)
		return cfg, fmt.Errorf("config read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config parse %s: %w", path, err)
	}

	Normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MinInit returns the configured minimum init duration in seconds.
func (c *Config) MinInit() int {
	if c.MinInitSeconds == nil {
		return 0
	}
	return *c.MinInitSeconds
}
