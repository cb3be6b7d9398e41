package stream

import (
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/observability"
)

// Dispatcher delivers events to every channel matching their scope with
// best-effort, at-most-once-per-attempt semantics. A failing channel is
// pruned from the registry as a side effect; a send failure is local to one
// recipient and never aborts delivery to others.
type Dispatcher struct {
	registry *Registry
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewDispatcher constructs a dispatcher over the given registry.
func NewDispatcher(registry *Registry, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, metrics: metrics, logger: logger}
}

// Dispatch resolves the event's scope and pushes to every matching
// connection. It never returns an error: delivery failures degrade to
// eviction of the failing connection.
func (d *Dispatcher) Dispatch(event Event) {
	payload, err := event.Marshal()
	if err != nil {
		d.logger.Error("marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	switch event.Scope.Kind {
	case ScopeAll:
		d.registry.ForEachAll(func(_ string, conn *Connection) {
			d.send(conn, payload, event.Type)
		})
	case ScopeRole:
		d.registry.ForEach(event.Scope.Role, func(_ string, conn *Connection) {
			d.send(conn, payload, event.Type)
		})
	case ScopeUser:
		if conn, ok := d.registry.Lookup(event.Scope.Role, event.Scope.Identity); ok {
			d.send(conn, payload, event.Type)
		}
	}
}

func (d *Dispatcher) send(conn *Connection, payload []byte, eventType EventType) {
	if err := conn.Channel.Send(payload); err != nil {
		d.logger.Info("evicting dead connection",
			zap.String("identity", conn.Identity),
			zap.String("role", string(conn.Role)),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		d.registry.Unregister(conn.Role, conn.Identity, conn.Channel)
		conn.Channel.Close()
		d.metrics.RecordDeliveryFailure(string(conn.Role))
		return
	}
	conn.TouchSent()
	d.metrics.RecordDelivery(string(conn.Role), string(eventType))
}
