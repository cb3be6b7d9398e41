package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/domain"
)

const defaultHeartbeatInterval = 30 * time.Second

// PresenceRecorder refreshes externally visible liveness for an identity.
// Implemented by the Redis presence store; nil disables recording.
type PresenceRecorder interface {
	Touch(ctx context.Context, identity string, role domain.Role)
}

// Heartbeat periodically pings every connection through the dispatcher.
// The transport has no built-in liveness probe, so the dispatcher's
// failure pruning on PING is the primary dead-connection detection.
type Heartbeat struct {
	dispatcher *Dispatcher
	registry   *Registry
	presence   PresenceRecorder
	interval   time.Duration
	logger     *zap.Logger
}

// NewHeartbeat constructs the monitor; a non-positive interval falls back
// to the 30s default.
func NewHeartbeat(dispatcher *Dispatcher, registry *Registry, presence PresenceRecorder, interval time.Duration, logger *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &Heartbeat{
		dispatcher: dispatcher,
		registry:   registry,
		presence:   presence,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until the context is cancelled, pinging on every tick.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("heartbeat monitor started", zap.Duration("interval", h.interval))
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("heartbeat monitor stopped")
			return
		case <-ticker.C:
			h.Tick(ctx)
		}
	}
}

// Tick performs one heartbeat cycle: ping everyone, then refresh presence
// for the connections that survived the cycle.
func (h *Heartbeat) Tick(ctx context.Context) {
	h.dispatcher.Dispatch(NewEvent(EventPing, ToAll(), PingPayload{}))

	if h.presence == nil {
		return
	}
	h.registry.ForEachAll(func(identity string, conn *Connection) {
		h.presence.Touch(ctx, identity, conn.Role)
	})
}
