// Package netcheck answers the three readiness questions asked before the bus
// check: does the primary interface hold an IPv4 address, is the clock
// plausible, and is the internet reachable.
package netcheck

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config is the minimal runtime config the checker needs.
type Config struct {
	Interface    string
	ProbeURL     string
	ProbeTimeout time.Duration
	MinYear      int
	MaxYear      int
}

// Checker implements the network side of the self test.
type Checker struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	// addrs lists interface addresses; swapped in tests.
	addrs func(name string) ([]net.Addr, error)
}

func New(cfg Config) *Checker {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = time.Second
	}
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.ProbeTimeout},
		now:    time.Now,
		addrs:  interfaceAddrs,
	}
}

// IPv4 returns the first IPv4 address on the primary interface, or nil when
// there is none. A missing interface counts as no address.
func (c *Checker) IPv4(ctx context.Context) (net.IP, error) {
	addrs, err := c.addrs(c.cfg.Interface)
	if err != nil {
		return nil, nil
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, nil
}

// ClockValid reports whether the system year lies inside the plausible window.
func (c *Checker) ClockValid() bool {
	return YearInWindow(c.now(), c.cfg.MinYear, c.cfg.MaxYear)
}

// Now exposes the checker's clock for log lines.
func (c *Checker) Now() time.Time {
	return c.now()
}

// Reachable fetches the probe URL. Any HTTP answer proves reachability.
func (c *Checker) Reachable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ProbeURL, nil)
	if err != nil {
		return fmt.Errorf("netcheck: request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("netcheck: %s unreachable: %w", c.cfg.ProbeURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// YearInWindow is the clock plausibility rule.
func YearInWindow(t time.Time, minYear, maxYear int) bool {
	y := t.Year()
	return y >= minYear && y <= maxYear
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}
