package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// CanBeAssigned reports whether an assignee may be set in this status.
func (s TicketStatus) CanBeAssigned() bool {
	return s == TicketStatusOpen || s == TicketStatusReopened
}

// CanBeModified reports whether the ticket accepts mutation in this status.
// CLOSED is terminal for modification; reopening is handled by the
// transition table, not by this predicate.
func (s TicketStatus) CanBeModified() bool {
	return s != TicketStatusClosed
}

// IsFinal reports whether the status is terminal.
func (s TicketStatus) IsFinal() bool {
	return s == TicketStatusClosed
}

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusReopened:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Number      string
	RequesterID string
	AssigneeID  *string
	Title       string
	Description string
	Category    string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// AssignedTo reports whether the ticket is assigned to the given identity.
func (t *Ticket) AssignedTo(identity string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == identity
}

// Unassigned reports whether no assignee is set.
func (t *Ticket) Unassigned() bool {
	return t.AssigneeID == nil || *t.AssigneeID == ""
}
