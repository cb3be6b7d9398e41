package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/domain"
)

type recordingPresence struct {
	mu      sync.Mutex
	touched []string
}

func (r *recordingPresence) Touch(_ context.Context, identity string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, string(role)+"/"+identity)
}

func TestHeartbeatTickPingsAndRefreshesPresence(t *testing.T) {
	dispatcher, registry, _ := newTestDispatcher()
	presence := &recordingPresence{}
	hb := NewHeartbeat(dispatcher, registry, presence, 0, zap.NewNop())

	ch := NewBufferedChannel(8)
	registry.Register(domain.RoleUser, "alice", ch)

	hb.Tick(context.Background())

	events := drain(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, "PING", events[0]["type"])
	assert.Equal(t, []string{"USER/alice"}, presence.touched)
}

func TestHeartbeatTickEvictsDeadBeforePresence(t *testing.T) {
	dispatcher, registry, _ := newTestDispatcher()
	presence := &recordingPresence{}
	hb := NewHeartbeat(dispatcher, registry, presence, 0, zap.NewNop())

	registry.Register(domain.RoleSupport, "dead", &failingChannel{})
	alive := NewBufferedChannel(8)
	registry.Register(domain.RoleSupport, "alive", alive)

	hb.Tick(context.Background())

	// The dead connection fails the PING, gets pruned, and never has its
	// presence refreshed.
	assert.Equal(t, []string{"SUPPORT/alive"}, presence.touched)
	_, ok := registry.Lookup(domain.RoleSupport, "dead")
	assert.False(t, ok)
	assert.Len(t, drain(t, alive), 1)
}

func TestHeartbeatNilPresence(t *testing.T) {
	dispatcher, registry, _ := newTestDispatcher()
	hb := NewHeartbeat(dispatcher, registry, nil, 0, zap.NewNop())

	registry.Register(domain.RoleUser, "alice", NewBufferedChannel(8))
	hb.Tick(context.Background())
}
