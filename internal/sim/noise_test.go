package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	written []byte
}

func (c *captureTransport) ReadByteUntil(time.Time) (byte, error) { return 0, nil }

func (c *captureTransport) Write(p []byte) error {
	c.written = append(c.written, p...)
	return nil
}

func (c *captureTransport) Close() error { return nil }

func TestNoisyTransport_Clean(t *testing.T) {
	inner := &captureTransport{}
	n := NewNoisyTransport(inner, 0, 0, 1)

	require.NoError(t, n.Write([]byte("^01|PING|*11$")))
	assert.Equal(t, "^01|PING|*11$", string(inner.written))
}

func TestNoisyTransport_Drop(t *testing.T) {
	inner := &captureTransport{}
	n := NewNoisyTransport(inner, 0, 1, 1)

	require.NoError(t, n.Write([]byte("^01|PING|*11$")))
	assert.Empty(t, inner.written)
}

func TestNoisyTransport_Flip(t *testing.T) {
	inner := &captureTransport{}
	n := NewNoisyTransport(inner, 1, 0, 1)

	in := []byte("^01|PING|*11$")
	require.NoError(t, n.Write(in))
	require.Len(t, inner.written, len(in))
	for i := range in {
		assert.NotEqual(t, in[i], inner.written[i])
	}
	assert.Equal(t, "^01|PING|*11$", string(in), "input is not modified")
}
