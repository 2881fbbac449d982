// Package sequencer drives one self-test run: it resets the outputs, checks
// address, connectivity and the storage bus in order, then always finalizes by
// stopping the display, reporting to the monitor and triggering the update.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/announce"
	"github.com/essgate/selftest/internal/display"
	"github.com/essgate/selftest/internal/probe"
	"github.com/essgate/selftest/internal/report"
)

// Outputs is the part of hardware.IO the sequence drives.
type Outputs interface {
	ResetSafe()
	SetLED(n int, on bool)
}

// Network answers the address and clock questions.
type Network interface {
	IPv4(ctx context.Context) (net.IP, error)
	ClockValid() bool
	Now() time.Time
	Reachable(ctx context.Context) error
}

// Bus probes the storage system.
type Bus interface {
	Probe(ctx context.Context, prof probe.Profile) (probe.Result, error)
}

// Actions are the external system commands.
type Actions interface {
	RenewAddress(ctx context.Context) error
	SyncClock(ctx context.Context) error
	AnnounceReady(ctx context.Context) error
	Update(ctx context.Context) error
	PackageLockHeld(ctx context.Context) bool
}

// Sink delivers the run report and returns the monitor's tunnel directive.
type Sink interface {
	Send(ctx context.Context, s report.Submission) (report.Directive, error)
}

// Tunnel is the remote-access tunnel.
type Tunnel interface {
	Active() bool
	Activate(ctx context.Context, domain string) error
	Deactivate(ctx context.Context) error
}

// Announcer publishes the run summary locally. Optional.
type Announcer interface {
	Publish(s announce.Summary) error
}

// Deps are the collaborators of a run. Sink may be nil when Options.Credential
// is false; Announcer may always be nil.
//
// Fault is a failure that happened while wiring the run, typically the hardware
// refusing to open. The run then reports it as critical and goes straight to
// finalization, so Outputs, Display and Bus may be nil.
type Deps struct {
	Outputs   Outputs
	Display   *display.Launcher
	Network   Network
	Bus       Bus
	Actions   Actions
	Sink      Sink
	Tunnel    Tunnel
	Announcer Announcer

	Fault error
}

type Options struct {
	Profile         probe.Profile
	Debug           bool // bus failures are logged but do not fail the run
	Credential      bool // an api key is configured
	Title           string
	ShutdownTimeout time.Duration
	MinInit         time.Duration
	ConfigErr       error // config could not be loaded; defaults are in use
}

// Result is what a run ends with.
type Result struct {
	Code   int
	Log    []string
	Bitmap string
}

type Sequencer struct {
	opts Options
	deps Deps
	log  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(opts Options, deps Deps, log *zap.Logger) (*Sequencer, error) {
	switch {
	case deps.Network == nil:
		return nil, errors.New("sequencer: network required")
	case deps.Actions == nil:
		return nil, errors.New("sequencer: actions required")
	case deps.Tunnel == nil:
		return nil, errors.New("sequencer: tunnel required")
	case opts.Credential && deps.Sink == nil:
		return nil, errors.New("sequencer: report sink required when a credential is set")
	case deps.Fault != nil:
		// hardware and bus are never touched
	case deps.Outputs == nil:
		return nil, errors.New("sequencer: outputs required")
	case deps.Display == nil:
		return nil, errors.New("sequencer: display required")
	case deps.Bus == nil:
		return nil, errors.New("sequencer: bus required")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		opts:  opts,
		deps:  deps,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}, nil
}

// run is the mutable state of one Run call.
type run struct {
	started  time.Time
	log      *RunLog
	disp     *display.Agent
	code     int
	lockHeld bool
	ipv4     string
	bitmap   string
	ip       bool
	internet bool
	bus      bool
}

// Run executes the sequence and the finalization. It never panics; any
// unexpected failure becomes ExitCritical.
func (s *Sequencer) Run(ctx context.Context) Result {
	r := &run{started: s.now(), log: NewRunLog(s.log)}

	r.code = s.execute(ctx, r)
	s.finalize(ctx, r)

	return Result{Code: r.code, Log: r.log.Lines(), Bitmap: r.bitmap}
}

func (s *Sequencer) execute(ctx context.Context, r *run) (code int) {
	defer func() {
		if p := recover(); p != nil {
			code = s.critical(r, fmt.Errorf("panic: %v", p), debug.Stack())
		}
	}()

	r.log.Info("Start initialization")
	if s.opts.ConfigErr != nil {
		r.log.Error("Config: " + s.opts.ConfigErr.Error() + ", using defaults")
	}

	r.lockHeld = s.deps.Actions.PackageLockHeld(ctx)
	if r.lockHeld {
		r.log.Info("Package manager is running, no system update")
	} else {
		r.log.Info("Package manager is not running")
	}

	if s.deps.Fault != nil {
		return s.critical(r, s.deps.Fault, nil)
	}

	r.disp = s.deps.Display.Acquire()
	r.disp.SetTitle(s.opts.Title)

	r.log.Info("Turn outputs off")
	s.deps.Outputs.ResetSafe()

	err := s.check(ctx, r)
	switch KindOf(err) {
	case "":
		return ExitOK
	case KindUnclassified:
		return s.critical(r, err, nil)
	}

	var ce *CheckError
	errors.As(err, &ce)
	r.log.Error(err.Error())
	r.log.Error("Finished with error")
	r.disp.Offer(ce.Msg)
	return ExitCheckFailed
}

func (s *Sequencer) check(ctx context.Context, r *run) error {
	ip, err := s.address(ctx, r)
	if err != nil {
		return err
	}
	r.ip, r.ipv4 = true, ip.String()
	r.log.Info("IP: " + r.ipv4)
	r.disp.SetIP(true)
	r.disp.Offer("IP ok")
	s.deps.Outputs.SetLED(1, true)

	if err := s.connectivity(ctx, r); err != nil {
		return err
	}
	r.internet = true
	r.log.Info("Internet access is available")
	r.disp.SetInternet(true)
	r.disp.Offer("Internet ok")
	s.deps.Outputs.SetLED(2, true)

	if err := s.bus(ctx, r); err != nil {
		return err
	}

	r.log.Info("Finished without error")
	r.disp.Offer("successful")

	r.log.Info("Announce systemd: ready")
	if err := s.deps.Actions.AnnounceReady(ctx); err != nil {
		r.log.Error("systemd notify failed: " + err.Error())
	}
	return nil
}

func (s *Sequencer) address(ctx context.Context, r *run) (net.IP, error) {
	ip, err := s.deps.Network.IPv4(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ipv4 address: %w", err)
	}
	if ip != nil {
		return ip, nil
	}

	r.log.Info("No IPv4 address, renewing DHCP lease")
	if err := s.deps.Actions.RenewAddress(ctx); err != nil {
		return nil, checkErr(KindAddress, "No IP address available", err)
	}

	ip, err = s.deps.Network.IPv4(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ipv4 address: %w", err)
	}
	if ip == nil {
		return nil, checkErr(KindAddress, "No IP address available", nil)
	}
	return ip, nil
}

func (s *Sequencer) connectivity(ctx context.Context, r *run) error {
	n := s.deps.Network

	if n.ClockValid() {
		r.log.Info("Date is ok: " + n.Now().Format(dateLayout))
		if err := n.Reachable(ctx); err != nil {
			return checkErr(KindConnectivity, "No internet", err)
		}
		return nil
	}

	// A wrong clock breaks TLS, so the clock is fixed before anything else.
	r.log.Info("Date is not ok: " + n.Now().Format(dateLayout))
	if err := s.deps.Actions.SyncClock(ctx); err != nil {
		return checkErr(KindConnectivity, "No time sync", err)
	}
	if !n.ClockValid() {
		return checkErr(KindConnectivity, "Date wrong", fmt.Errorf("date is still %s", n.Now().Format(dateLayout)))
	}
	r.log.Info("Date is now ok: " + n.Now().Format(dateLayout))
	return nil
}

func (s *Sequencer) bus(ctx context.Context, r *run) error {
	res, err := s.deps.Bus.Probe(ctx, s.opts.Profile)
	if err == nil {
		r.bus = true
		r.log.Info(fmt.Sprintf("Modbus %s is ok (%d attempts)", s.opts.Profile.Key, res.Attempts))
		r.disp.SetBus(true)
		r.disp.Offer("RS485 ok")
		return nil
	}

	ce := checkErr(KindBus, "No RS485", err)
	if s.opts.Debug {
		r.log.Error(ce.Error() + " (ignored in debug mode)")
		return nil
	}
	return ce
}

// critical logs an unclassified failure with everything known about it.
func (s *Sequencer) critical(r *run, err error, stack []byte) int {
	msg := fmt.Sprintf("Critical error: %+v", err)
	if len(stack) > 0 {
		msg += "\n" + string(stack)
	}
	r.log.Error(msg)
	if r.disp != nil {
		r.disp.Offer("Critical error")
	}
	return ExitCritical
}

const dateLayout = "02.01.2006"

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
