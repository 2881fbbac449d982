// Package report uploads the self-test log to the remote monitor and decodes
// the tunnel directive the monitor answers with.
package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProtocolVersion is the payload version understood by the monitor.
const ProtocolVersion = 1

// DirectiveKind is what the monitor wants done with the tunnel.
type DirectiveKind int

const (
	DirectiveNone DirectiveKind = iota
	DirectiveActivate
	DirectiveDeactivate
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveActivate:
		return "activate"
	case DirectiveDeactivate:
		return "deactivate"
	default:
		return "none"
	}
}

// Directive is the monitor's answer to one submission.
type Directive struct {
	Kind   DirectiveKind
	Domain string // relay domain, set for DirectiveActivate
}

// Submission is one run's report.
type Submission struct {
	RunID        string
	Log          []string
	IPv4         string
	TunnelActive bool
}

// payload is the wire format. Field names are fixed by the monitor.
type payload struct {
	Version   int    `json:"version"`
	APIKey    string `json:"apikey"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
	System    string `json:"system"`
	IPv4      string `json:"ipv4"`
	Yaler     bool   `json:"yaler"`
	MachineID string `json:"machine_id,omitempty"`
	RunID     string `json:"run_id"`
}

// Config is the minimal runtime config the client needs.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	AppID   string // key for the hashed machine id
}

// Client is the HTTPS report sink.
type Client struct {
	cfg       Config
	http      *http.Client
	machineID string
	now       func() time.Time
	log       *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("report: url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	id, err := machineid.ProtectedID(cfg.AppID)
	if err != nil {
		// Containers and fresh images may lack /etc/machine-id; the report still goes out.
		log.Debug("machine id unavailable", zap.Error(err))
		id = ""
	}

	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		machineID: id,
		now:       time.Now,
		log:       log,
	}, nil
}

// Send posts the submission and returns the decoded directive.
// Transport and HTTP failures return DirectiveNone with an error.
func (c *Client) Send(ctx context.Context, s Submission) (Directive, error) {
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}

	body, err := json.Marshal(payload{
		Version:   ProtocolVersion,
		APIKey:    c.cfg.APIKey,
		Timestamp: c.now().UnixMilli(),
		Content:   "system",
		System:    strings.Join(s.Log, "\n"),
		IPv4:      s.IPv4,
		Yaler:     s.TunnelActive,
		MachineID: c.machineID,
		RunID:     s.RunID,
	})
	if err != nil {
		return Directive{}, fmt.Errorf("report: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Directive{}, fmt.Errorf("report: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "selftest/1")

	resp, err := c.http.Do(req)
	if err != nil {
		return Directive{}, fmt.Errorf("report: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Directive{}, fmt.Errorf("report: server answered %s", resp.Status)
	}

	c.log.Debug("report accepted", zap.String("run_id", s.RunID), zap.Int("lines", len(s.Log)))
	return ParseDirective(resp.Body), nil
}

// ParseDirective reads the first line of the monitor's answer.
// A JSON object carrying a "yaler" string activates the tunnel to that relay
// domain, a JSON object without it deactivates it, and anything else (including
// a "yaler" value that is not a string) means no directive.
func ParseDirective(r io.Reader) Directive {
	line, err := bufio.NewReader(io.LimitReader(r, 64<<10)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Directive{}
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return Directive{}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return Directive{}
	}

	raw, ok := obj["yaler"]
	if !ok {
		return Directive{Kind: DirectiveDeactivate}
	}
	var domain string
	if err := json.Unmarshal(raw, &domain); err != nil {
		return Directive{}
	}
	if strings.TrimSpace(domain) == "" {
		return Directive{Kind: DirectiveDeactivate}
	}
	return Directive{Kind: DirectiveActivate, Domain: strings.TrimSpace(domain)}
}
