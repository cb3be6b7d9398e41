package auth

import "github.com/spec-kit/support-stream/internal/domain"

// Policy is the capability matrix over ticket operations, keyed by role and
// ticket assignment state. It is a pure function of its inputs, has no side
// effects, and is the single authority consulted before any ticket mutation.
type Policy struct{}

// NewPolicy constructs the policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// CanView reports whether the actor may read the ticket. SUPPORT sees
// tickets assigned to them plus any still-claimable ticket; requesters see
// their own.
func (Policy) CanView(role domain.Role, actorID string, t *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin, domain.RoleAdmin:
		return true
	case domain.RoleSupport:
		return t.AssignedTo(actorID) || t.Status.CanBeAssigned()
	case domain.RoleUser:
		return t.RequesterID == actorID
	}
	return false
}

// CanModify reports whether the actor may edit ticket fields.
func (Policy) CanModify(role domain.Role, actorID string, t *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return t.Status.CanBeModified()
	case domain.RoleSupport:
		return t.AssignedTo(actorID) && t.Status.CanBeModified()
	}
	return false
}

// CanAssign reports whether the actor may set the given assignee. SUPPORT
// may only claim for themselves, and only when the ticket is unassigned or
// already theirs.
func (Policy) CanAssign(role domain.Role, actorID string, t *domain.Ticket, assigneeID string) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return !t.Status.IsFinal()
	case domain.RoleSupport:
		return assigneeID == actorID && !t.Status.IsFinal() &&
			(t.Unassigned() || t.AssignedTo(actorID))
	}
	return false
}

// CanUnassign reports whether the actor may clear the assignee. SUPPORT
// cannot unlock a ticket assigned to someone else.
func (Policy) CanUnassign(role domain.Role, actorID string, t *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return !t.Status.IsFinal()
	case domain.RoleSupport:
		return t.AssignedTo(actorID)
	}
	return false
}

// CanClose reports whether the actor may close the ticket.
func (Policy) CanClose(role domain.Role, actorID string, t *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return !t.Status.IsFinal()
	case domain.RoleSupport:
		return t.AssignedTo(actorID)
	}
	return false
}

// CanReply reports whether the actor may add a message to the thread.
func (Policy) CanReply(role domain.Role, actorID string, t *domain.Ticket) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return t.Status.CanBeModified()
	case domain.RoleSupport:
		return t.AssignedTo(actorID) && t.Status.CanBeModified()
	case domain.RoleUser:
		return t.RequesterID == actorID && t.Status.CanBeModified()
	}
	return false
}

// CanReopen reports whether the role may bring a ticket back from
// RESOLVED or CLOSED.
func (Policy) CanReopen(role domain.Role) bool {
	return role.Level() >= domain.RoleAdmin.Level()
}

// CanTransition gates a lifecycle status change. SUPPORT may act on tickets
// assigned to them, or claim an unassigned one; reopening is reserved for
// ADMIN and above.
func (p Policy) CanTransition(role domain.Role, actorID string, t *domain.Ticket, target domain.TicketStatus) bool {
	if target == domain.TicketStatusReopened {
		return p.CanReopen(role)
	}
	switch role {
	case domain.RoleSuperAdmin, domain.RoleAdmin:
		return true
	case domain.RoleSupport:
		return t.AssignedTo(actorID) || t.Unassigned()
	}
	return false
}
