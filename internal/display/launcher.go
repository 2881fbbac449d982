package display

import (
	"sync"

	"go.uber.org/zap"
)

// Launcher hands out the single running Agent, starting one on first use.
// When that agent exits it releases its slot so the next Acquire starts a new one.
type Launcher struct {
	out  Writer
	opts Options
	log  *zap.Logger

	mu  sync.Mutex
	cur *Agent
}

func NewLauncher(out Writer, opts Options, log *zap.Logger) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{out: out, opts: opts, log: log}
}

// Acquire returns the running agent, or creates and starts one.
func (l *Launcher) Acquire() *Agent {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur != nil {
		return l.cur
	}

	a := newAgent(l.out, l.opts, l.log)
	a.onExit = l.release
	l.cur = a
	go a.run()

	l.log.Debug("status renderer started")
	return a
}

func (l *Launcher) release(a *Agent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur == a {
		l.cur = nil
	}
	l.log.Debug("status renderer exited")
}
