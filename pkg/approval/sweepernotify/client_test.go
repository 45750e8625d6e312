package sweepernotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	in := ExpiredNotification{RequestID: "req-1", Kind: "tool", Reason: "timeout"}
	data, err := c.Marshal(&in)
	require.NoError(t, err)

	var out ExpiredNotification
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestNewClient_DialsWithoutBlocking(t *testing.T) {
	// grpc.NewClient does not dial eagerly, so an unreachable address
	// must still succeed at construction time.
	c, err := NewClient("127.0.0.1:0")
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c)
}
