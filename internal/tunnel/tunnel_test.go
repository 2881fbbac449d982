package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/essgate/selftest/internal/action"
)

type recordingRunner struct {
	ran []string
}

func (r *recordingRunner) Run(_ context.Context, c action.Command) error {
	r.ran = append(r.ran, c.Name)
	return nil
}

func newController(t *testing.T) (*Controller, *recordingRunner, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "yaler", "relay-domain")
	r := &recordingRunner{}
	c := New(file,
		action.Command{Name: "start", Binary: "/bin/true"},
		action.Command{Name: "stop", Binary: "/bin/true"},
		r, nil)
	return c, r, file
}

func TestActivateDeactivate(t *testing.T) {
	c, r, file := newController(t)
	ctx := context.Background()

	assert.False(t, c.Active())

	require.NoError(t, c.Activate(ctx, "gw-1234.example.net"))
	assert.True(t, c.Active())
	d, err := c.Domain()
	require.NoError(t, err)
	assert.Equal(t, "gw-1234.example.net", d)

	// same domain again does not restart the service
	require.NoError(t, c.Activate(ctx, "gw-1234.example.net"))

	require.NoError(t, c.Deactivate(ctx))
	assert.False(t, c.Active())
	assert.NoFileExists(t, file)

	// already inactive: nothing to stop
	require.NoError(t, c.Deactivate(ctx))

	assert.Equal(t, []string{"start", "stop"}, r.ran)
}

func TestActivate_RejectsBadDomain(t *testing.T) {
	c, r, _ := newController(t)

	assert.Error(t, c.Activate(context.Background(), ""))
	assert.Error(t, c.Activate(context.Background(), "a/b"))
	assert.Empty(t, r.ran)
}

func TestActive_EmptyFile(t *testing.T) {
	c, _, file := newController(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("\n"), 0o644))

	assert.False(t, c.Active())
}
