package display

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures row writes in order.
type recorder struct {
	mu     sync.Mutex
	frames []frame
}

type frame struct {
	row  int
	text string
	at   time.Time
}

func (r *recorder) WriteAt(row, col int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame{row: row, text: text, at: time.Now()})
	return nil
}

func (r *recorder) statusRows() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []frame
	for _, f := range r.frames {
		if f.row == 1 {
			out = append(out, f)
		}
	}
	return out
}

// firstShown returns when a status row containing msg was first written.
func (r *recorder) firstShown(msg string) (time.Time, bool) {
	for _, f := range r.statusRows() {
		if strings.Contains(f.text, msg) {
			return f.at, true
		}
	}
	return time.Time{}, false
}

var fast = Options{Tick: 2 * time.Millisecond, Ticks: 5}

func stop(t *testing.T, a *Agent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
}

func TestAgent_FIFOWithFullDwell(t *testing.T) {
	rec := &recorder{}
	a := Start(rec, fast, nil)

	a.Offer("first")
	a.Offer("second")
	a.Offer("third")
	stop(t, a)

	var order []string
	seen := map[string]bool{}
	for _, f := range rec.statusRows() {
		msg := strings.TrimSpace(f.text[4:])
		if msg != "" && !seen[msg] {
			seen[msg] = true
			order = append(order, msg)
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, order)

	dwell := time.Duration(fast.Ticks) * fast.Tick
	t1, ok1 := rec.firstShown("first")
	t2, ok2 := rec.firstShown("second")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.GreaterOrEqual(t, t2.Sub(t1), dwell)
}

func TestAgent_RedrawsOnlyOnChange(t *testing.T) {
	rec := &recorder{}
	a := Start(rec, fast, nil)

	a.Offer("IP ok")
	// wait for the message to be picked up and the dwell to end
	require.Eventually(t, func() bool {
		_, ok := rec.firstShown("IP ok")
		return ok
	}, time.Second, time.Millisecond)
	time.Sleep(3 * time.Duration(fast.Ticks) * fast.Tick)

	quiet := len(rec.statusRows())
	time.Sleep(3 * time.Duration(fast.Ticks) * fast.Tick)
	assert.Equal(t, quiet, len(rec.statusRows()), "no redraw without change")

	a.SetIP(true)
	require.Eventually(t, func() bool {
		rows := rec.statusRows()
		return strings.HasPrefix(rows[len(rows)-1].text, "X-- IP ok")
	}, time.Second, time.Millisecond)

	stop(t, a)
}

func TestAgent_RowLayout(t *testing.T) {
	rec := &recorder{}
	a := Start(rec, fast, nil)
	a.SetTitle("Selftest")
	a.SetIP(true)
	a.SetInternet(true)
	a.Offer("Internet ok")
	stop(t, a)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var title, row string
	for _, f := range rec.frames {
		if f.row == 0 {
			title = f.text
		} else {
			row = f.text
		}
	}
	assert.Equal(t, "Selftest        ", title)
	assert.Equal(t, "XX- Internet ok ", row)
	assert.Equal(t, "XX-", a.Bitmap())
	assert.True(t, a.Internet())
}

func TestAgent_StopBounded(t *testing.T) {
	rec := &recorder{}
	a := Start(rec, Options{Tick: 20 * time.Millisecond, Ticks: 10}, nil)
	for i := 0; i < 5; i++ {
		a.Offer("msg")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, a.Stop(ctx), "queue drain outlasts the bound")

	// the renderer still drains and exits
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("renderer never exited")
	}
}

func TestLauncher_SingleInstanceAndRecreate(t *testing.T) {
	l := NewLauncher(&recorder{}, fast, nil)

	a := l.Acquire()
	assert.Same(t, a, l.Acquire())

	stop(t, a)

	b := l.Acquire()
	assert.NotSame(t, a, b)
	stop(t, b)
}
