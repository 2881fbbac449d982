// Package announce publishes the self-test summary to a local MQTT broker so
// on-site services can react to the gateway's readiness.
package announce

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrConnectionFailed wraps broker connection failures.
var ErrConnectionFailed = errors.New("announce: mqtt connection failed")

// Summary is the retained result message.
type Summary struct {
	ExitCode   int       `json:"exit_code"`
	IPv4       string    `json:"ipv4,omitempty"`
	Bitmap     string    `json:"bitmap"`
	IP         bool      `json:"ip"`
	Internet   bool      `json:"internet"`
	Bus        bool      `json:"bus"`
	Profile    string    `json:"profile"`
	FinishedAt time.Time `json:"finished_at"`
}

// Config is the minimal runtime config the publisher needs.
type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Topic    string
	Timeout  time.Duration
}

// Publisher sends one retained summary per run.
type Publisher struct {
	cfg Config
	log *zap.Logger

	// newClient is swapped in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

func New(cfg Config, log *zap.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{cfg: cfg, log: log, newClient: pahomqtt.NewClient}
}

// Publish connects, publishes the summary retained at QoS 1, and disconnects.
func (p *Publisher) Publish(s Summary) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("announce: encode: %w", err)
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(p.cfg.ClientID).
		SetConnectTimeout(p.cfg.Timeout).
		SetAutoReconnect(false).
		SetCleanSession(true)

	client := p.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, p.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer client.Disconnect(250)

	pub := client.Publish(p.cfg.Topic, 1, true, body)
	if !pub.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("announce: publish to %s timed out", p.cfg.Topic)
	}
	if err := pub.Error(); err != nil {
		return fmt.Errorf("announce: publish to %s: %w", p.cfg.Topic, err)
	}

	p.log.Debug("summary announced", zap.String("topic", p.cfg.Topic), zap.Int("exit_code", s.ExitCode))
	return nil
}
