package announce

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes (embedding keeps them tied to the real interfaces) ----

type fakeToken struct {
	pahomqtt.Token
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	pahomqtt.Client
	connectErr   error
	sent         []published
	disconnected bool
}

func (c *fakeClient) Connect() pahomqtt.Token { return &fakeToken{err: c.connectErr} }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func publisherWith(c *fakeClient) *Publisher {
	p := New(Config{Broker: "tcp://broker:1883", ClientID: "t", Topic: "gw/selftest"}, nil)
	p.newClient = func(*pahomqtt.ClientOptions) pahomqtt.Client { return c }
	return p
}

func TestPublish_RetainedSummary(t *testing.T) {
	c := &fakeClient{}
	s := Summary{ExitCode: 1, Bitmap: "X--", IP: true, Profile: "dess", FinishedAt: time.Unix(0, 0).UTC()}

	require.NoError(t, publisherWith(c).Publish(s))

	require.Len(t, c.sent, 1)
	assert.Equal(t, "gw/selftest", c.sent[0].topic)
	assert.Equal(t, byte(1), c.sent[0].qos)
	assert.True(t, c.sent[0].retained)
	assert.True(t, c.disconnected)

	var back Summary
	require.NoError(t, json.Unmarshal(c.sent[0].payload, &back))
	assert.Equal(t, s, back)
}

func TestPublish_ConnectFailure(t *testing.T) {
	c := &fakeClient{connectErr: errors.New("not authorized")}

	err := publisherWith(c).Publish(Summary{})
	require.ErrorIs(t, err, ErrConnectionFailed)
	assert.Empty(t, c.sent)
}

func TestPublish_UnreachableBroker(t *testing.T) {
	p := New(Config{Broker: "tcp://127.0.0.1:1", ClientID: "t", Topic: "x", Timeout: 2 * time.Second}, nil)

	assert.ErrorIs(t, p.Publish(Summary{}), ErrConnectionFailed)
}
