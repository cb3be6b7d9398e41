package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedChannelPreservesOrder(t *testing.T) {
	ch := NewBufferedChannel(8)

	require.NoError(t, ch.Send([]byte("one")))
	require.NoError(t, ch.Send([]byte("two")))
	require.NoError(t, ch.Send([]byte("three")))

	assert.Equal(t, "one", string(<-ch.Outbound()))
	assert.Equal(t, "two", string(<-ch.Outbound()))
	assert.Equal(t, "three", string(<-ch.Outbound()))
}

func TestBufferedChannelFullBuffer(t *testing.T) {
	ch := NewBufferedChannel(2)

	require.NoError(t, ch.Send([]byte("a")))
	require.NoError(t, ch.Send([]byte("b")))

	err := ch.Send([]byte("c"))
	assert.ErrorIs(t, err, ErrChannelFull)

	// Draining frees capacity again.
	<-ch.Outbound()
	assert.NoError(t, ch.Send([]byte("c")))
}

func TestBufferedChannelSendAfterClose(t *testing.T) {
	ch := NewBufferedChannel(2)
	ch.Close()
	ch.Close() // idempotent

	err := ch.Send([]byte("late"))
	assert.ErrorIs(t, err, ErrChannelClosed)

	select {
	case <-ch.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}
