package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/protocol"
)

func newIdleConn(t *testing.T) *Conn {
	t.Helper()
	return NewConn(nil, cache.NewWorkspace("user-1"), NewHub(nil), "user-1", nil)
}

func TestConn_SendAfterCloseIsDropped(t *testing.T) {
	c := newIdleConn(t)
	c.Close()

	env, err := protocol.NewEnvelope(protocol.TypeFullState, "", protocol.FullState{})
	require.NoError(t, err)

	// A broadcast can race a disconnect; the envelope is dropped, not
	// sent on the closed channel.
	require.NotPanics(t, func() { c.Send(env) })
}

func TestConn_BufferOverflowClosesConnection(t *testing.T) {
	c := newIdleConn(t)

	env, err := protocol.NewEnvelope(protocol.TypeFullState, "", protocol.FullState{})
	require.NoError(t, err)

	// Nobody drains the channel; the send past capacity closes the
	// connection, and later sends are dropped.
	for i := 0; i < sendBuffer+1; i++ {
		c.Send(env)
	}
	require.NotPanics(t, func() { c.Send(env) })

	queued := 0
	for range c.send {
		queued++
	}
	assert.Equal(t, sendBuffer, queued, "channel was closed after filling up")
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c := newIdleConn(t)
	require.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}
