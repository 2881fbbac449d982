package netcheck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearInWindow(t *testing.T) {
	at := func(y int) time.Time { return time.Date(y, 6, 1, 0, 0, 0, 0, time.UTC) }

	assert.False(t, YearInWindow(at(1970), 2020, 2037))
	assert.True(t, YearInWindow(at(2020), 2020, 2037))
	assert.True(t, YearInWindow(at(2026), 2020, 2037))
	assert.True(t, YearInWindow(at(2037), 2020, 2037))
	assert.False(t, YearInWindow(at(2038), 2020, 2037))
}

func TestClockValid_UsesClock(t *testing.T) {
	c := New(Config{MinYear: 2020, MaxYear: 2037})
	c.now = func() time.Time { return time.Unix(0, 0) }
	assert.False(t, c.ClockValid())

	c.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	assert.True(t, c.ClockValid())
}

func TestIPv4_PicksFirstV4(t *testing.T) {
	c := New(Config{Interface: "eth0"})
	c.addrs = func(string) ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	ip, err := c.IPv4(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip.String())
}

func TestIPv4_NoneOrMissingInterface(t *testing.T) {
	c := New(Config{Interface: "eth0"})

	c.addrs = func(string) ([]net.Addr, error) {
		return []net.Addr{&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)}}, nil
	}
	ip, err := c.IPv4(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ip)

	c.addrs = func(string) ([]net.Addr, error) { return nil, errors.New("no such interface") }
	ip, err = c.IPv4(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ip)
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{ProbeURL: srv.URL, ProbeTimeout: time.Second})
	assert.NoError(t, c.Reachable(context.Background()), "any answer counts")

	srv.Close()
	assert.Error(t, c.Reachable(context.Background()))
}

func TestReachable_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{ProbeURL: srv.URL, ProbeTimeout: 20 * time.Millisecond})
	assert.Error(t, c.Reachable(context.Background()))
}
