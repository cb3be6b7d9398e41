package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/domain"
)

func TestRegistryRegisterReturnsReplacedChannel(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	first := NewBufferedChannel(4)
	second := NewBufferedChannel(4)

	previous := registry.Register(domain.RoleUser, "alice", first)
	assert.Nil(t, previous)

	previous = registry.Register(domain.RoleUser, "alice", second)
	require.NotNil(t, previous)
	assert.Same(t, first, previous.(*BufferedChannel))

	conn, ok := registry.Lookup(domain.RoleUser, "alice")
	require.True(t, ok)
	assert.Same(t, second, conn.Channel.(*BufferedChannel))
	assert.Equal(t, 1, registry.Stats().Total)
}

func TestRegistryUnregisterIgnoresStaleChannel(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	old := NewBufferedChannel(4)
	current := NewBufferedChannel(4)
	registry.Register(domain.RoleSupport, "bob", old)
	registry.Register(domain.RoleSupport, "bob", current)

	// A disconnect callback firing for the replaced channel must not touch
	// the live entry.
	registry.Unregister(domain.RoleSupport, "bob", old)
	conn, ok := registry.Lookup(domain.RoleSupport, "bob")
	require.True(t, ok)
	assert.Same(t, current, conn.Channel.(*BufferedChannel))

	registry.Unregister(domain.RoleSupport, "bob", current)
	_, ok = registry.Lookup(domain.RoleSupport, "bob")
	assert.False(t, ok)
}

func TestRegistryPartitionsByRole(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	registry.Register(domain.RoleUser, "casey", NewBufferedChannel(4))
	registry.Register(domain.RoleSupport, "casey", NewBufferedChannel(4))
	registry.Register(domain.RoleAdmin, "root", NewBufferedChannel(4))

	stats := registry.Stats()
	assert.Equal(t, 1, stats.PerRole[domain.RoleUser])
	assert.Equal(t, 1, stats.PerRole[domain.RoleSupport])
	assert.Equal(t, 1, stats.PerRole[domain.RoleAdmin])
	assert.Equal(t, 0, stats.PerRole[domain.RoleSuperAdmin])
	assert.Equal(t, 3, stats.Total)

	var visited []string
	registry.ForEach(domain.RoleSupport, func(identity string, _ *Connection) {
		visited = append(visited, identity)
	})
	assert.Equal(t, []string{"casey"}, visited)
}

func TestRegistryConcurrentChurn(t *testing.T) {
	registry := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%d", n%10)
			ch := NewBufferedChannel(4)
			if prev := registry.Register(domain.RoleUser, identity, ch); prev != nil {
				prev.Close()
			}
			registry.ForEachAll(func(string, *Connection) {})
			registry.Unregister(domain.RoleUser, identity, ch)
		}(i)
	}
	wg.Wait()

	// Every goroutine removed its own channel; stale unregisters of replaced
	// channels are no-ops, so nothing can remain except entries whose owner
	// was replaced after unregistering. Either way the map stays consistent.
	stats := registry.Stats()
	assert.LessOrEqual(t, stats.Total, 10)
}
