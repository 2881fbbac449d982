package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/action"
	"github.com/essgate/selftest/internal/announce"
	"github.com/essgate/selftest/internal/config"
	"github.com/essgate/selftest/internal/display"
	"github.com/essgate/selftest/internal/hardware/periph"
	"github.com/essgate/selftest/internal/netcheck"
	"github.com/essgate/selftest/internal/probe"
	"github.com/essgate/selftest/internal/probe/modbus"
	"github.com/essgate/selftest/internal/report"
	"github.com/essgate/selftest/internal/sequencer"
	"github.com/essgate/selftest/internal/tunnel"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// hardwareOpener is periph.Open; swapped in tests.
var hardwareOpener = periph.Open

// build wires every component of an init run from the config.
// The reporting side is built first: a failure in the hardware or bus wiring
// becomes Deps.Fault so the run still reports it.
func build(cfg *config.Config, cfgErr error, log *zap.Logger) (*sequencer.Sequencer, error) {

	// --------------------
	// Network, actions, tunnel
	// --------------------

	checker := netcheck.New(netcheck.Config{
		Interface:    cfg.Network.Interface,
		ProbeURL:     cfg.Network.ProbeURL,
		ProbeTimeout: ms(cfg.Network.ProbeTimeoutMs),
		MinYear:      cfg.Network.MinYear,
		MaxYear:      cfg.Network.MaxYear,
	})

	runner := action.NewRunner(log.Named("action"))
	system := action.NewSystem(cfg, runner, log.Named("action"))

	tun := tunnel.New(
		cfg.Tunnel.DomainFile,
		action.FromConfig("tunnel start", cfg.Tunnel.Start),
		action.FromConfig("tunnel stop", cfg.Tunnel.Stop),
		runner,
		log.Named("tunnel"),
	)

	deps := sequencer.Deps{
		Network: checker,
		Actions: system,
		Tunnel:  tun,
	}
	credential := cfg.APIKey != ""

	// --------------------
	// Report + announce (optional)
	// --------------------

	if credential {
		sink, err := report.New(report.Config{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: ms(cfg.Report.TimeoutMs),
			AppID:   cfg.Report.AppID,
		}, log.Named("report"))
		if err != nil {
			credential = false
			deps.Fault = fmt.Errorf("report sink: %w", err)
		} else {
			deps.Sink = sink
		}
	}

	if cfg.MQTT.Broker != "" {
		deps.Announcer = announce.New(announce.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Timeout:  ms(cfg.MQTT.TimeoutMs),
		}, log.Named("announce"))
	}

	// --------------------
	// Serial bus
	// --------------------

	prof, err := probe.ProfileFor(cfg.ESS, probe.LinkConfig{
		Port:    cfg.Serial.Port,
		Timeout: ms(cfg.Serial.TimeoutMs),
		Retries: cfg.Serial.Retries,
	})
	if err != nil && deps.Fault == nil {
		deps.Fault = err
	}
	deps.Bus = probe.New(modbus.Dial, probe.PortPaths{
		LockDir:    cfg.Serial.LockDir,
		Alternates: cfg.Serial.Alternates,
	}, log.Named("probe"))

	// --------------------
	// Hardware + display
	// --------------------

	if deps.Fault == nil {
		io, err := hardwareOpener(cfg.Hardware, log.Named("hardware"))
		if err != nil {
			deps.Fault = err
		} else {
			deps.Outputs = io
			deps.Display = display.NewLauncher(io, display.Options{
				Tick:  ms(cfg.Display.TickMs),
				Ticks: cfg.Display.Ticks,
			}, log.Named("display"))
		}
	}

	return sequencer.New(sequencer.Options{
		Profile:         prof,
		Debug:           cfg.Debug,
		Credential:      credential,
		Title:           cfg.Display.Title,
		ShutdownTimeout: ms(cfg.Display.ShutdownTimeoutMs),
		MinInit:         time.Duration(cfg.MinInit()) * time.Second,
		ConfigErr:       cfgErr,
	}, deps, log.Named("sequencer"))
}
