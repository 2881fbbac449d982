// Package display runs the status renderer: a goroutine that owns the check
// bitmap and a FIFO of short messages and redraws the panel when either changes.
package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/status"
)

// Writer is the display surface. hardware.IO satisfies it and serializes access.
type Writer interface {
	WriteAt(row, col int, text string) error
}

// Options controls render timing. Dwell is Ticks x Tick.
type Options struct {
	Tick  time.Duration
	Ticks int
}

// DefaultOptions shows each message for one second.
func DefaultOptions() Options {
	return Options{Tick: 100 * time.Millisecond, Ticks: 10}
}

// Agent is one running renderer.
type Agent struct {
	out  Writer
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	result status.CheckResult
	title  string
	queue  []string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	onExit func(*Agent)
}

func newAgent(out Writer, opts Options, log *zap.Logger) *Agent {
	if opts.Tick <= 0 || opts.Ticks <= 0 {
		opts = DefaultOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		out:  out,
		opts: opts,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches a standalone renderer. Most callers go through a Launcher.
func Start(out Writer, opts Options, log *zap.Logger) *Agent {
	a := newAgent(out, opts, log)
	go a.run()
	return a
}

// ---- producer side (any goroutine) ----

// SetTitle sets the first-row label.
func (a *Agent) SetTitle(text string) {
	a.mu.Lock()
	a.title = text
	a.mu.Unlock()
}

// Offer queues a message. Never blocks; the queue is unbounded.
func (a *Agent) Offer(text string) {
	a.mu.Lock()
	a.queue = append(a.queue, text)
	a.mu.Unlock()
}

func (a *Agent) SetIP(v bool) {
	a.mu.Lock()
	a.result.SetIP(v)
	a.mu.Unlock()
}

func (a *Agent) SetInternet(v bool) {
	a.mu.Lock()
	a.result.SetInternet(v)
	a.mu.Unlock()
}

func (a *Agent) SetBus(v bool) {
	a.mu.Lock()
	a.result.SetBus(v)
	a.mu.Unlock()
}

// Internet reports whether the connectivity flag is set.
func (a *Agent) Internet() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result.Internet()
}

// Bitmap returns the current bitmap without clearing the changed flag.
func (a *Agent) Bitmap() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result.String()
}

// Stop asks the renderer to exit once the queue is drained and waits for it,
// bounded by ctx.
func (a *Agent) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stop) })

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("display: renderer did not stop: %w", ctx.Err())
	}
}

// Done is closed when the renderer has exited.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// ---- consumer side (renderer goroutine) ----

func (a *Agent) run() {
	defer func() {
		if a.onExit != nil {
			a.onExit(a)
		}
		close(a.done)
	}()

	ticker := time.NewTicker(a.opts.Tick)
	defer ticker.Stop()

	current := ""
	for {
		// Observe stop before polling: anything offered before Stop is still shown.
		stopping := a.stopping()
		next, fresh := a.poll()
		if !fresh && stopping {
			return
		}
		if fresh {
			current = next
		}

		for i := 0; i < a.opts.Ticks; i++ {
			a.redraw(current, fresh && i == 0)
			<-ticker.C
		}
	}
}

// redraw writes both rows when a new message became current or the bitmap changed.
func (a *Agent) redraw(message string, force bool) {
	a.mu.Lock()
	if !force && !a.result.Changed() {
		a.mu.Unlock()
		return
	}
	title := a.title
	bitmap := a.result.Render()
	a.mu.Unlock()

	if err := a.out.WriteAt(status.RowTitle, 0, status.TitleRow(title)); err != nil {
		a.log.Warn("display write failed", zap.Int("row", status.RowTitle), zap.Error(err))
	}
	if err := a.out.WriteAt(status.RowStatus, 0, status.StatusRow(bitmap, message)); err != nil {
		a.log.Warn("display write failed", zap.Int("row", status.RowStatus), zap.Error(err))
	}
}

func (a *Agent) poll() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return "", false
	}
	msg := a.queue[0]
	a.queue[0] = ""
	a.queue = a.queue[1:]
	return msg, true
}

func (a *Agent) stopping() bool {
	select {
	case <-a.stop:
		return true
	default:
		return false
	}
}
