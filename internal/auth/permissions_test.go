package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-stream/internal/domain"
)

func ticketWith(status domain.TicketStatus, requesterID string, assigneeID *string) *domain.Ticket {
	return &domain.Ticket{
		ID:          "t1",
		Number:      "TCK-2026-0001",
		RequesterID: requesterID,
		AssigneeID:  assigneeID,
		Status:      status,
	}
}

func ptr(s string) *string { return &s }

func TestCanViewMatrix(t *testing.T) {
	policy := NewPolicy()

	assigned := ticketWith(domain.TicketStatusInProgress, "alice", ptr("sam"))
	open := ticketWith(domain.TicketStatusOpen, "alice", nil)

	assert.True(t, policy.CanView(domain.RoleSuperAdmin, "anyone", assigned))
	assert.True(t, policy.CanView(domain.RoleAdmin, "anyone", assigned))

	assert.True(t, policy.CanView(domain.RoleSupport, "sam", assigned))
	assert.False(t, policy.CanView(domain.RoleSupport, "pat", assigned))
	assert.True(t, policy.CanView(domain.RoleSupport, "pat", open))

	assert.True(t, policy.CanView(domain.RoleUser, "alice", assigned))
	assert.False(t, policy.CanView(domain.RoleUser, "mallory", assigned))
}

func TestCanAssignSupportSelfClaimOnly(t *testing.T) {
	policy := NewPolicy()

	open := ticketWith(domain.TicketStatusOpen, "alice", nil)
	ownedBySam := ticketWith(domain.TicketStatusInProgress, "alice", ptr("sam"))
	closed := ticketWith(domain.TicketStatusClosed, "alice", nil)

	assert.True(t, policy.CanAssign(domain.RoleSupport, "sam", open, "sam"))
	assert.False(t, policy.CanAssign(domain.RoleSupport, "sam", open, "pat"))
	assert.True(t, policy.CanAssign(domain.RoleSupport, "sam", ownedBySam, "sam"))
	assert.False(t, policy.CanAssign(domain.RoleSupport, "pat", ownedBySam, "pat"))
	assert.False(t, policy.CanAssign(domain.RoleSupport, "sam", closed, "sam"))

	assert.True(t, policy.CanAssign(domain.RoleAdmin, "root", ownedBySam, "pat"))
	assert.False(t, policy.CanAssign(domain.RoleAdmin, "root", closed, "pat"))
	assert.True(t, policy.CanAssign(domain.RoleSuperAdmin, "root", closed, "pat"))

	assert.False(t, policy.CanAssign(domain.RoleUser, "alice", open, "alice"))
}

func TestCanUnassign(t *testing.T) {
	policy := NewPolicy()

	ownedBySam := ticketWith(domain.TicketStatusInProgress, "alice", ptr("sam"))

	assert.True(t, policy.CanUnassign(domain.RoleSupport, "sam", ownedBySam))
	assert.False(t, policy.CanUnassign(domain.RoleSupport, "pat", ownedBySam))
	assert.True(t, policy.CanUnassign(domain.RoleAdmin, "root", ownedBySam))
}

func TestCanReply(t *testing.T) {
	policy := NewPolicy()

	assigned := ticketWith(domain.TicketStatusInProgress, "alice", ptr("sam"))
	closed := ticketWith(domain.TicketStatusClosed, "alice", ptr("sam"))

	assert.True(t, policy.CanReply(domain.RoleUser, "alice", assigned))
	assert.False(t, policy.CanReply(domain.RoleUser, "alice", closed))
	assert.False(t, policy.CanReply(domain.RoleUser, "mallory", assigned))

	assert.True(t, policy.CanReply(domain.RoleSupport, "sam", assigned))
	assert.False(t, policy.CanReply(domain.RoleSupport, "pat", assigned))
	assert.False(t, policy.CanReply(domain.RoleAdmin, "root", closed))
	assert.True(t, policy.CanReply(domain.RoleSuperAdmin, "root", closed))
}

func TestCanTransition(t *testing.T) {
	policy := NewPolicy()

	assignedToSam := ticketWith(domain.TicketStatusInProgress, "alice", ptr("sam"))
	unassigned := ticketWith(domain.TicketStatusOpen, "alice", nil)
	closed := ticketWith(domain.TicketStatusClosed, "alice", nil)

	// SUPPORT acts on own or unassigned tickets only.
	assert.True(t, policy.CanTransition(domain.RoleSupport, "sam", assignedToSam, domain.TicketStatusClosed))
	assert.False(t, policy.CanTransition(domain.RoleSupport, "pat", assignedToSam, domain.TicketStatusClosed))
	assert.True(t, policy.CanTransition(domain.RoleSupport, "pat", unassigned, domain.TicketStatusInProgress))

	// Reopening is reserved for ADMIN and above regardless of assignment.
	assert.False(t, policy.CanTransition(domain.RoleSupport, "sam", closed, domain.TicketStatusReopened))
	assert.True(t, policy.CanTransition(domain.RoleAdmin, "root", closed, domain.TicketStatusReopened))
	assert.True(t, policy.CanTransition(domain.RoleSuperAdmin, "root", closed, domain.TicketStatusReopened))

	assert.False(t, policy.CanTransition(domain.RoleUser, "alice", unassigned, domain.TicketStatusClosed))
}
