package stream

import (
	"errors"
	"sync"
)

var (
	// ErrChannelClosed is returned by Send after Close.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelFull is returned by Send when the recipient is not draining
	// its queue; the dispatcher treats it as a dead connection.
	ErrChannelFull = errors.New("channel buffer full")
)

// Channel is a per-connection outbound delivery handle. Send reports
// failure as a value; the dispatcher branches on it instead of catching
// transport errors.
type Channel interface {
	Send(payload []byte) error
	Close()
}

const defaultChannelBuffer = 32

// BufferedChannel is the in-process Channel implementation backing SSE
// streams. Send never blocks: the writer goroutine drains Outbound, and a
// full buffer means the peer stopped reading.
type BufferedChannel struct {
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewBufferedChannel creates a channel with the given queue size
// (defaulted when non-positive).
func NewBufferedChannel(size int) *BufferedChannel {
	if size <= 0 {
		size = defaultChannelBuffer
	}
	return &BufferedChannel{
		out:  make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// Send enqueues a payload for the writer goroutine, preserving FIFO order
// for this recipient.
func (c *BufferedChannel) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.out <- payload:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrChannelFull
	}
}

// Outbound exposes the queue the stream writer drains.
func (c *BufferedChannel) Outbound() <-chan []byte {
	return c.out
}

// Done is closed when the channel is closed.
func (c *BufferedChannel) Done() <-chan struct{} {
	return c.done
}

// Close marks the channel dead. Safe to call more than once.
func (c *BufferedChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
