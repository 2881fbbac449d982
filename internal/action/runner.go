// Package action runs the external system commands the self test depends on:
// DHCP renew, time sync, readiness announce, system update and the
// package-manager lock holder lookup.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// outputLimit caps how much command output is kept for logging.
const outputLimit = 4096

// waitDelay bounds how long output pipes may outlive a killed command.
const waitDelay = 2 * time.Second

// Command is one external program invocation.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Timeout bounds the whole run. Zero means no extra bound beyond ctx.
	Timeout time.Duration
}

// ErrNotConfigured is returned for a command with no binary.
var ErrNotConfigured = errors.New("action: command not configured")

// Runner executes commands and waits for them to finish.
type Runner struct {
	log *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log}
}

// Run executes c and waits for completion. A non-zero exit is an error.
func (r *Runner) Run(ctx context.Context, c Command) error {
	_, err := r.Output(ctx, c)
	return err
}

// Output executes c and returns its trimmed stdout.
func (r *Runner) Output(ctx context.Context, c Command) ([]byte, error) {
	if c.Binary == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, c.Name)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	r.log.Debug("running command",
		zap.String("name", c.Name),
		zap.String("binary", c.Binary),
		zap.Strings("args", c.Args),
	)

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...) //nolint:gosec // binaries come from the operator's config file
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		r.log.Debug("command failed",
			zap.String("name", c.Name),
			zap.Duration("elapsed", elapsed),
			zap.String("stderr", clip(stderr.String())),
			zap.Error(err),
		)
		return stdout.Bytes(), fmt.Errorf("%s: %w", c.Name, err)
	}

	r.log.Debug("command finished",
		zap.String("name", c.Name),
		zap.Duration("elapsed", elapsed),
		zap.String("stdout", clip(stdout.String())),
	)
	return bytes.TrimSpace(stdout.Bytes()), nil
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputLimit {
		return s[:outputLimit] + "..."
	}
	return s
}
