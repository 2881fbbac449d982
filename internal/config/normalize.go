package config

// Default values applied by Normalize for anything left empty.
const (
	DefaultURL        = "https://fenecon.de/femsmonitor"
	DefaultESS        = "dess"
	DefaultInterface  = "eth0"
	DefaultProbeURL   = "https://fenecon.de"
	DefaultSerialPort = "/dev/ttyUSB0"
	DefaultLEDPath    = "/sys/class/leds/beaglebone:green:usr%d/brightness"
	DefaultMinInit    = 180
)

// Normalize fills defaults for zero values.
// It is allowed to mutate configuration and MUST be called before Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ESS == "" {
		cfg.ESS = DefaultESS
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	// ------------------------------------------------------------
	// NETWORK / CLOCK
	// ------------------------------------------------------------

	n := &cfg.Network
	if n.Interface == "" {
		n.Interface = DefaultInterface
	}
	if n.ProbeURL == "" {
		n.ProbeURL = DefaultProbeURL
	}
	if n.ProbeTimeoutMs <= 0 {
		n.ProbeTimeoutMs = 1000
	}
	if n.MinYear == 0 {
		n.MinYear = 2020
	}
	if n.MaxYear == 0 {
		n.MaxYear = 2037
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	s := &cfg.Serial
	if s.Port == "" {
		s.Port = DefaultSerialPort
	}
	if s.Alternates == "" {
		s.Alternates = "/dev/ttyUSB*"
	}
	if s.LockDir == "" {
		s.LockDir = "/var/lock"
	}
	if s.TimeoutMs <= 0 {
		s.TimeoutMs = 500
	}
	if s.Retries <= 0 {
		s.Retries = 1
	}

	// ------------------------------------------------------------
	// HARDWARE (BeagleBone Black header names)
	// ------------------------------------------------------------

	h := &cfg.Hardware
	if len(h.Relays) == 0 {
		h.Relays = []string{"P8_12", "P8_11", "P8_16", "P8_15"}
	}
	if len(h.Analog) == 0 {
		h.Analog = []string{"P9_14", "P9_16", "P8_19", "P8_13"}
	}
	if len(h.Dividers) == 0 {
		h.Dividers = []string{"P9_28", "P9_29", "P9_30", "P9_31"}
	}
	if h.Backlight == "" {
		h.Backlight = "P9_22"
	}
	if h.LEDPath == "" {
		h.LEDPath = DefaultLEDPath
	}
	if h.LCD.RS == "" {
		h.LCD.RS = "P9_15"
	}
	if h.LCD.RW == "" {
		h.LCD.RW = "P9_23"
	}
	if h.LCD.Enable == "" {
		h.LCD.Enable = "P9_12"
	}
	if len(h.LCD.Data) == 0 {
		h.LCD.Data = []string{"P8_30", "P8_28", "P8_29", "P8_27"}
	}

	// ------------------------------------------------------------
	// ACTIONS
	// ------------------------------------------------------------

	a := &cfg.Actions
	defaultCommand(&a.DHCPRenew, "/sbin/dhclient", []string{cfg.Network.Interface}, 30000)
	defaultCommand(&a.TimeSync, "/usr/sbin/ntpdate",
		[]string{"-b", "-u", "fenecon.de", "0.pool.ntp.org", "1.pool.ntp.org", "2.pool.ntp.org", "3.pool.ntp.org"},
		60000)
	defaultCommand(&a.NotifyReady, "/bin/systemd-notify", []string{"--ready"}, 5000)
	defaultCommand(&a.Update, "/etc/cron.daily/fems-autoupdate", nil, 30*60*1000)
	defaultCommand(&a.LockHolder, "/usr/bin/lsof", nil, 5000)

	if cfg.PackageLock == "" {
		cfg.PackageLock = "/var/lib/dpkg/lock"
	}

	// ------------------------------------------------------------
	// TUNNEL / MQTT / DISPLAY / REPORT
	// ------------------------------------------------------------

	if cfg.Tunnel.DomainFile == "" {
		cfg.Tunnel.DomainFile = "/etc/yaler/relay-domain"
	}
	if cfg.Tunnel.Start.TimeoutMs <= 0 {
		cfg.Tunnel.Start.TimeoutMs = 10000
	}
	if cfg.Tunnel.Stop.TimeoutMs <= 0 {
		cfg.Tunnel.Stop.TimeoutMs = 10000
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "selftest"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "gateway/selftest/result"
	}
	if cfg.MQTT.TimeoutMs <= 0 {
		cfg.MQTT.TimeoutMs = 3000
	}

	d := &cfg.Display
	if d.Title == "" {
		d.Title = "FEMS Selftest"
	}
	if d.TickMs <= 0 {
		d.TickMs = 100
	}
	if d.Ticks <= 0 {
		d.Ticks = 10
	}
	if d.ShutdownTimeoutMs <= 0 {
		d.ShutdownTimeoutMs = 15000
	}

	if cfg.Report.TimeoutMs <= 0 {
		cfg.Report.TimeoutMs = 10000
	}
	if cfg.Report.AppID == "" {
		cfg.Report.AppID = "selftest"
	}

	if cfg.MinInitSeconds == nil {
		v := DefaultMinInit
		cfg.MinInitSeconds = &v
	}
}

func defaultCommand(c *CommandConfig, cmd string, args []string, timeoutMs int) {
	if c.Cmd == "" {
		c.Cmd = cmd
		if c.Args == nil {
			c.Args = args
		}
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = timeoutMs
	}
}

// Defaults returns a normalized config with every default applied.
func Defaults() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
