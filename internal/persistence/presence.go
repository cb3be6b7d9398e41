package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/domain"
)

// PresenceStore records connection liveness in Redis with a TTL so other
// tooling can observe who is currently streaming. The in-memory registry
// stays authoritative; presence is observability only and a Redis outage
// never affects delivery.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPresenceStore creates a presence store; a nil client disables it.
func NewPresenceStore(r *Redis, ttl time.Duration, logger *zap.Logger) *PresenceStore {
	if r == nil || r.Client == nil {
		return nil
	}
	return &PresenceStore{client: r.Client, ttl: ttl, logger: logger}
}

func presenceKey(role domain.Role, identity string) string {
	return fmt.Sprintf("presence:%s:%s", role, identity)
}

// Touch refreshes the liveness record for an identity.
func (p *PresenceStore) Touch(ctx context.Context, identity string, role domain.Role) {
	if p == nil {
		return
	}
	if err := p.client.Set(ctx, presenceKey(role, identity), time.Now().UnixMilli(), p.ttl).Err(); err != nil {
		p.logger.Debug("presence touch failed", zap.String("identity", identity), zap.Error(err))
	}
}

// Remove drops the liveness record after a clean disconnect.
func (p *PresenceStore) Remove(ctx context.Context, identity string, role domain.Role) {
	if p == nil {
		return
	}
	if err := p.client.Del(ctx, presenceKey(role, identity)).Err(); err != nil {
		p.logger.Debug("presence remove failed", zap.String("identity", identity), zap.Error(err))
	}
}

// Online lists identities with an unexpired presence record for the role.
func (p *PresenceStore) Online(ctx context.Context, role domain.Role) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	pattern := fmt.Sprintf("presence:%s:*", role)
	prefix := fmt.Sprintf("presence:%s:", role)

	var identities []string
	iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		identities = append(identities, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return identities, nil
}
