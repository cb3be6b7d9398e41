package stream

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/support-stream/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConnected      EventType = "CONNECTED"
	EventPing           EventType = "PING"
	EventNewTicket      EventType = "NEW_TICKET"
	EventNewReply       EventType = "NEW_REPLY"
	EventTicketStatus   EventType = "TICKET_STATUS"
	EventTicketAssigned EventType = "TICKET_ASSIGNED"
)

// ScopeKind selects the targeting rule for an event.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeRole
	ScopeUser
)

// Scope is the targeting rule for an event: everyone, a role partition,
// or a single identity within a role partition.
type Scope struct {
	Kind     ScopeKind
	Role     domain.Role
	Identity string
}

// ToAll targets every live connection.
func ToAll() Scope {
	return Scope{Kind: ScopeAll}
}

// ToRole targets every connection registered under the role.
func ToRole(role domain.Role) Scope {
	return Scope{Kind: ScopeRole, Role: role}
}

// ToUser targets a single identity within a role partition.
func ToUser(identity string, role domain.Role) Scope {
	return Scope{Kind: ScopeUser, Role: role, Identity: identity}
}

// Event is an immutable realtime message. Events are never persisted;
// recipients that are offline when one is dispatched never see it.
type Event struct {
	Type      EventType
	Scope     Scope
	Data      any
	Timestamp time.Time
}

// NewEvent builds an event stamped with the current server time.
func NewEvent(eventType EventType, scope Scope, data any) Event {
	return Event{
		Type:      eventType,
		Scope:     scope,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// envelope is the wire shape pushed to clients.
type envelope struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// Marshal renders the event in its wire shape with an epoch-millis timestamp.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(envelope{
		Type:      e.Type,
		Data:      e.Data,
		Timestamp: e.Timestamp.UnixMilli(),
	})
}

// ConnectedPayload acknowledges a freshly opened stream.
type ConnectedPayload struct {
	Identity    string      `json:"identity"`
	Role        domain.Role `json:"role"`
	ConnectedAt int64       `json:"connected_at"`
}

// PingPayload is the heartbeat no-op body.
type PingPayload struct{}

// NewTicketPayload announces a created ticket to the staff audience.
type NewTicketPayload struct {
	TicketID    string                `json:"ticket_id"`
	Number      string                `json:"number"`
	Title       string                `json:"title"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	RequesterID string                `json:"requester_id"`
}

// NewReplyPayload announces a message added to a ticket thread.
type NewReplyPayload struct {
	TicketID    string                   `json:"ticket_id"`
	MessageID   string                   `json:"message_id"`
	AuthorID    string                   `json:"author_id"`
	AuthorRole  domain.Role              `json:"author_role"`
	MessageType domain.TicketMessageType `json:"message_type"`
	BodyPreview string                   `json:"body_preview"`
}

// TicketStatusPayload announces a lifecycle transition. Status values are
// lowercased on the wire.
type TicketStatusPayload struct {
	TicketID  string `json:"ticket_id"`
	Number    string `json:"number"`
	OldStatus string `json:"old_status"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	ActorID   string `json:"actor_id"`
}

// TicketAssignedPayload announces an assignment change.
type TicketAssignedPayload struct {
	TicketID   string  `json:"ticket_id"`
	Number     string  `json:"number"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	ActorID    string  `json:"actor_id"`
}
