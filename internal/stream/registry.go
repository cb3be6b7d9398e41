package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/domain"
)

// Connection tracks one live delivery channel. Owned exclusively by the
// Registry; created on stream open, destroyed on completion, error, or
// replacement by a newer connection for the same identity.
type Connection struct {
	Identity  string
	Role      domain.Role
	Channel   Channel
	CreatedAt time.Time

	mu         sync.Mutex
	lastSentAt time.Time
}

// TouchSent records a successful delivery.
func (c *Connection) TouchSent() {
	c.mu.Lock()
	c.lastSentAt = time.Now()
	c.mu.Unlock()
}

// LastSentAt returns the time of the last successful delivery.
func (c *Connection) LastSentAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSentAt
}

// Stats summarizes live connections for observability.
type Stats struct {
	PerRole map[domain.Role]int `json:"per_role"`
	Total   int                 `json:"total"`
}

// Registry holds the set of live channels, partitioned by role. It is the
// one piece of process-wide mutable state; it has no persistent backing and
// is rebuilt from nothing on restart by reconnecting clients.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.Role]map[string]*Connection
	logger *zap.Logger
}

// NewRegistry creates an empty registry with a partition per role.
func NewRegistry(logger *zap.Logger) *Registry {
	conns := make(map[domain.Role]map[string]*Connection, len(domain.AllRoles()))
	for _, role := range domain.AllRoles() {
		conns[role] = make(map[string]*Connection)
	}
	return &Registry{conns: conns, logger: logger}
}

// Register inserts a connection atomically. If an entry already existed for
// (role, identity) it is evicted and its channel returned so the caller can
// close it; at most one live channel exists per (role, identity).
func (r *Registry) Register(role domain.Role, identity string, ch Channel) Channel {
	conn := &Connection{
		Identity:  identity,
		Role:      role,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	partition, ok := r.conns[role]
	if !ok {
		partition = make(map[string]*Connection)
		r.conns[role] = partition
	}
	var previous Channel
	if existing, exists := partition[identity]; exists {
		previous = existing.Channel
	}
	partition[identity] = conn
	r.mu.Unlock()

	r.logger.Debug("connection registered",
		zap.String("identity", identity),
		zap.String("role", string(role)),
		zap.Bool("replaced", previous != nil))
	return previous
}

// Unregister removes the entry only if it still refers to the supplied
// channel, so a stale disconnect cannot remove a newer connection that
// replaced it. No-op if absent.
func (r *Registry) Unregister(role domain.Role, identity string, ch Channel) {
	r.mu.Lock()
	partition := r.conns[role]
	if existing, ok := partition[identity]; ok && existing.Channel == ch {
		delete(partition, identity)
		r.mu.Unlock()
		r.logger.Debug("connection unregistered",
			zap.String("identity", identity),
			zap.String("role", string(role)))
		return
	}
	r.mu.Unlock()
}

// Lookup returns the live connection for (role, identity), if any.
func (r *Registry) Lookup(role domain.Role, identity string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[role][identity]
	return conn, ok
}

// ForEach iterates a snapshot of the role's current entries. Entries removed
// concurrently are still visited once; new entries may be missed.
func (r *Registry) ForEach(role domain.Role, fn func(identity string, conn *Connection)) {
	for _, conn := range r.snapshot(role) {
		fn(conn.Identity, conn)
	}
}

// ForEachAll iterates a snapshot across all role partitions.
func (r *Registry) ForEachAll(fn func(identity string, conn *Connection)) {
	for _, role := range domain.AllRoles() {
		r.ForEach(role, fn)
	}
}

// Stats returns per-role counts and a total.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{PerRole: make(map[domain.Role]int, len(r.conns))}
	for role, partition := range r.conns {
		stats.PerRole[role] = len(partition)
		stats.Total += len(partition)
	}
	return stats
}

func (r *Registry) snapshot(role domain.Role) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partition := r.conns[role]
	out := make([]*Connection, 0, len(partition))
	for _, conn := range partition {
		out = append(out, conn)
	}
	return out
}
