package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/essgate/selftest/internal/config"
	"github.com/essgate/selftest/internal/hardware"
	"github.com/essgate/selftest/internal/sequencer"
)

func TestParseAnalog(t *testing.T) {
	id, pct, err := parseAnalog("2, 37.5")
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, 37.5, pct)

	for _, bad := range []string{"", "2", "x,10", "1,half"} {
		_, _, err := parseAnalog(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRows(t *testing.T) {
	rows := parseRows("Hello|World")
	assert.Equal(t, "Hello           ", rows[0])
	assert.Equal(t, "World           ", rows[1])

	rows = parseRows("only one")
	assert.Equal(t, "only one        ", rows[0])
	assert.Equal(t, "                ", rows[1])
}

func TestLoadConfig_UnusableFileFallsBackToDefaults(t *testing.T) {
	for name, body := range map[string]string{
		"parse error":     "ess: [broken\n",
		"unknown profile": "ess: xess\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "selftest.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			c, err := loadConfig(path)

			assert.Error(t, err)
			require.NotNil(t, c)
			assert.Equal(t, config.DefaultESS, c.ESS)
			assert.NoError(t, config.Validate(c))
		})
	}
}

func TestBuild_HardwareFailureIsReported(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		mu.Lock()
		bodies = append(bodies, m)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"yaler":"gw-7.relay.example"}` + "\n"))
	}))
	defer srv.Close()

	prev := hardwareOpener
	hardwareOpener = func(config.HardwareConfig, *zap.Logger) (*hardware.IO, error) {
		return nil, errors.New("periph: host init: no gpio driver")
	}
	defer func() { hardwareOpener = prev }()

	dir := t.TempDir()
	zero := 0
	c := config.Defaults()
	c.URL = srv.URL
	c.APIKey = "k"
	c.PackageLock = filepath.Join(dir, "dpkg.lock")
	c.Tunnel.DomainFile = filepath.Join(dir, "relay-domain")
	c.MinInitSeconds = &zero

	seq, err := build(c, nil, zap.NewNop())
	require.NoError(t, err)

	res := seq.Run(context.Background())

	assert.Equal(t, sequencer.ExitCritical, res.Code)
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0]["system"], "Critical error: periph: host init")

	domain, err := os.ReadFile(c.Tunnel.DomainFile)
	require.NoError(t, err)
	assert.Equal(t, "gw-7.relay.example", strings.TrimSpace(string(domain)))
}

func TestBuild_ConfigErrorIsLogged(t *testing.T) {
	prev := hardwareOpener
	hardwareOpener = func(config.HardwareConfig, *zap.Logger) (*hardware.IO, error) {
		return nil, errors.New("no hardware in tests")
	}
	defer func() { hardwareOpener = prev }()

	zero := 0
	c := config.Defaults()
	c.PackageLock = filepath.Join(t.TempDir(), "dpkg.lock")
	c.MinInitSeconds = &zero

	seq, err := build(c, errors.New("config parse: bad yaml"), zap.NewNop())
	require.NoError(t, err)

	res := seq.Run(context.Background())

	assert.Equal(t, sequencer.ExitCritical, res.Code)
	assert.Contains(t, strings.Join(res.Log, "\n"), "ERROR: Config: config parse: bad yaml, using defaults")
}

func TestRootCommand_ErrorsPrintedOnlyByMain(t *testing.T) {
	assert.True(t, rootCmd.SilenceErrors)
	assert.True(t, rootCmd.SilenceUsage)
}
