package action

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/config"
)

// System binds the configured commands to the operations the sequencer calls.
type System struct {
	runner *Runner
	log    *zap.Logger

	dhcpRenew   Command
	timeSync    Command
	notifyReady Command
	update      Command
	lockHolder  Command
	lockPath    string
}

// FromConfig converts a config command into a Command.
func FromConfig(name string, c config.CommandConfig) Command {
	return Command{
		Name:    name,
		Binary:  c.Cmd,
		Args:    c.Args,
		Timeout: time.Duration(c.TimeoutMs) * time.Millisecond,
	}
}

func NewSystem(cfg *config.Config, runner *Runner, log *zap.Logger) *System {
	if log == nil {
		log = zap.NewNop()
	}
	a := cfg.Actions
	return &System{
		runner:      runner,
		log:         log,
		dhcpRenew:   FromConfig("dhcp renew", a.DHCPRenew),
		timeSync:    FromConfig("time sync", a.TimeSync),
		notifyReady: FromConfig("notify ready", a.NotifyReady),
		update:      FromConfig("system update", a.Update),
		lockHolder:  FromConfig("lock holder", a.LockHolder),
		lockPath:    cfg.PackageLock,
	}
}

func (s *System) RenewAddress(ctx context.Context) error { return s.runner.Run(ctx, s.dhcpRenew) }
func (s *System) SyncClock(ctx context.Context) error    { return s.runner.Run(ctx, s.timeSync) }
func (s *System) AnnounceReady(ctx context.Context) error {
	return s.runner.Run(ctx, s.notifyReady)
}
func (s *System) Update(ctx context.Context) error { return s.runner.Run(ctx, s.update) }

// PackageLockHeld reports whether the package manager lock file exists and a
// process holds it. Lookup failures count as not held.
func (s *System) PackageLockHeld(ctx context.Context) bool {
	if _, err := os.Stat(s.lockPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("package lock stat failed", zap.String("path", s.lockPath), zap.Error(err))
		}
		return false
	}

	holder := s.lockHolder
	holder.Args = append(append([]string(nil), holder.Args...), s.lockPath)

	// lsof exits 1 when nobody holds the file; only its output matters.
	out, err := s.runner.Output(ctx, holder)
	if err != nil && len(out) == 0 {
		s.log.Debug("package lock holder lookup", zap.Error(err))
	}
	return len(bytes.TrimSpace(out)) > 0
}
