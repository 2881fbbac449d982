package sequencer

import (
	"sync"

	"go.uber.org/zap"
)

// RunLog is the ordered, append-only log of one run. Every line is mirrored
// to zap; the accumulated text is what the remote monitor receives.
type RunLog struct {
	mu    sync.Mutex
	lines []string
	zl    *zap.Logger
}

func NewRunLog(zl *zap.Logger) *RunLog {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &RunLog{zl: zl}
}

func (l *RunLog) Info(text string) {
	l.append(text)
	l.zl.Info(text)
}

func (l *RunLog) Error(text string) {
	l.append("ERROR: " + text)
	l.zl.Error(text)
}

// Lines returns a copy of the log so far.
func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func (l *RunLog) append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}
