// Package tunnel switches the reverse-relay tunnel used for remote access.
// The relay domain is persisted in a file; its presence means "active".
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/action"
)

// Runner runs the tunnel service commands. action.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, c action.Command) error
}

type Controller struct {
	domainFile string
	start      action.Command
	stop       action.Command
	runner     Runner
	log        *zap.Logger
}

func New(domainFile string, start, stop action.Command, runner Runner, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		domainFile: domainFile,
		start:      start,
		stop:       stop,
		runner:     runner,
		log:        log,
	}
}

// Active reports whether a relay domain is configured.
func (c *Controller) Active() bool {
	_, err := c.Domain()
	return err == nil
}

// Domain returns the configured relay domain.
func (c *Controller) Domain() (string, error) {
	raw, err := os.ReadFile(c.domainFile)
	if err != nil {
		return "", err
	}
	d := strings.TrimSpace(string(raw))
	if d == "" {
		return "", errors.New("tunnel: empty relay domain")
	}
	return d, nil
}

// Activate stores the relay domain and (re)starts the tunnel service.
func (c *Controller) Activate(ctx context.Context, domain string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" || strings.ContainsAny(domain, " /\n") {
		return fmt.Errorf("tunnel: invalid relay domain %q", domain)
	}

	if cur, err := c.Domain(); err == nil && cur == domain {
		c.log.Debug("tunnel already active", zap.String("domain", domain))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.domainFile), 0o755); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	if err := os.WriteFile(c.domainFile, []byte(domain+"\n"), 0o644); err != nil {
		return fmt.Errorf("tunnel: write domain: %w", err)
	}
	return c.runIfSet(ctx, c.start)
}

// Deactivate removes the relay domain and stops the tunnel service.
func (c *Controller) Deactivate(ctx context.Context) error {
	err := os.Remove(c.domainFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tunnel: remove domain: %w", err)
	}
	return c.runIfSet(ctx, c.stop)
}

func (c *Controller) runIfSet(ctx context.Context, cmd action.Command) error {
	if cmd.Binary == "" {
		return nil
	}
	return c.runner.Run(ctx, cmd)
}
