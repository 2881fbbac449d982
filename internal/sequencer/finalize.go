package sequencer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/essgate/selftest/internal/announce"
	"github.com/essgate/selftest/internal/report"
)

// finalize always runs after execute. Nothing here changes the exit code
// except a panic, which is treated like any other critical failure.
func (s *Sequencer) finalize(ctx context.Context, r *run) {
	defer func() {
		if p := recover(); p != nil {
			r.code = s.critical(r, fmt.Errorf("panic during finalization: %v", p), debug.Stack())
		}
	}()

	// Cancellation of the run must not cut the report or the update short.
	fctx := context.WithoutCancel(ctx)

	s.stopDisplay(fctx, r)

	active := s.deps.Tunnel.Active()
	if active {
		r.log.Info("Tunnel is activated")
	} else {
		r.log.Info("Tunnel is deactivated")
	}

	if !s.opts.Credential {
		r.log.Error("API key is not available, skip report")
	} else {
		s.report(fctx, r, active)
	}

	s.update(fctx, r)
	s.announce(r)
	s.waitMinInit(ctx, r)
}

func (s *Sequencer) stopDisplay(ctx context.Context, r *run) {
	if r.disp == nil {
		r.bitmap = "---"
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	if err := r.disp.Stop(sctx); err != nil {
		r.log.Error(err.Error())
	}
	r.bitmap = r.disp.Bitmap()
}

func (s *Sequencer) report(ctx context.Context, r *run, active bool) {
	d, err := s.deps.Sink.Send(ctx, report.Submission{
		Log:          r.log.Lines(),
		IPv4:         r.ipv4,
		TunnelActive: active,
	})
	if err != nil {
		r.log.Error("Error while sending report: " + err.Error())
	} else {
		r.log.Info("Successfully sent report")
	}

	switch d.Kind {
	case report.DirectiveActivate:
		r.log.Info("Activate tunnel to " + d.Domain)
		if err := s.deps.Tunnel.Activate(ctx, d.Domain); err != nil {
			r.log.Error("Unable to activate tunnel: " + err.Error())
		}
	case report.DirectiveDeactivate:
		r.log.Info("Deactivate tunnel")
		if err := s.deps.Tunnel.Deactivate(ctx); err != nil {
			r.log.Error("Unable to deactivate tunnel: " + err.Error())
		}
	}
}

func (s *Sequencer) update(ctx context.Context, r *run) {
	switch {
	case r.code == ExitCritical:
		r.log.Info("Skip system update: critical error")
	case !r.internet:
		r.log.Info("Skip system update: no internet access")
	case r.lockHeld:
		r.log.Info("Skip system update: package manager is running")
	default:
		r.log.Info("Start system update")
		if err := s.deps.Actions.Update(ctx); err != nil {
			r.log.Error("System update failed: " + err.Error())
		}
	}
}

func (s *Sequencer) announce(r *run) {
	if s.deps.Announcer == nil {
		return
	}
	err := s.deps.Announcer.Publish(announce.Summary{
		ExitCode:   r.code,
		IPv4:       r.ipv4,
		Bitmap:     r.bitmap,
		IP:         r.ip,
		Internet:   r.internet,
		Bus:        r.bus,
		Profile:    s.opts.Profile.Key,
		FinishedAt: s.now(),
	})
	if err != nil {
		r.log.Error("Unable to announce result: " + err.Error())
	}
}

// waitMinInit keeps the process alive for at least MinInit after start.
// Skipped while the package manager runs.
func (s *Sequencer) waitMinInit(ctx context.Context, r *run) {
	if r.lockHeld || s.opts.MinInit <= 0 {
		return
	}
	elapsed := s.now().Sub(r.started)
	if elapsed >= s.opts.MinInit {
		return
	}
	left := s.opts.MinInit - elapsed
	r.log.Info(fmt.Sprintf("Finished after %d seconds, waiting %d more", int(elapsed/time.Second), int(left.Round(time.Second)/time.Second)))
	s.sleep(ctx, left)
}
