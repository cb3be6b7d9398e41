package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/domain"
	"github.com/spec-kit/support-stream/internal/repository"
	"github.com/spec-kit/support-stream/internal/sequence"
	"github.com/spec-kit/support-stream/internal/stream"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// EventDispatcher is the slice of the stream dispatcher the service needs.
type EventDispatcher interface {
	Dispatch(event stream.Event)
}

// TicketService coordinates ticket workflows: every mutation passes through
// the permission policy, transitions pass through the state machine, and
// successful changes are pushed to live clients through the dispatcher.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	accounts   repository.AccountRepository
	policy     *auth.Policy
	sequences  *sequence.Generator
	dispatcher EventDispatcher
	logger     *zap.Logger

	ticketPrefix string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.TicketMessageRepository
	HistoryRepo  repository.TicketHistoryRepository
	AccountRepo  repository.AccountRepository
	Policy       *auth.Policy
	Sequences    *sequence.Generator
	Dispatcher   EventDispatcher
	Logger       *zap.Logger
	TicketPrefix string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters for staff.
type TicketListFilter struct {
	AssigneeID *string
	Category   *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	prefix := deps.TicketPrefix
	if prefix == "" {
		prefix = "TCK"
	}
	return &TicketService{
		tickets:      deps.TicketRepo,
		messages:     deps.MessageRepo,
		history:      deps.HistoryRepo,
		accounts:     deps.AccountRepo,
		policy:       deps.Policy,
		sequences:    deps.Sequences,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		ticketPrefix: prefix,
	}
}

// CreateTicket creates a ticket for the requester and announces it to the
// staff audience. An Unavailable error from the sequence generator is
// surfaced so the caller can retry.
func (s *TicketService) CreateTicket(ctx context.Context, actor *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	number, err := s.sequences.Next(ctx, s.ticketPrefix)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Number:      number,
		RequesterID: actor.Identity,
		Title:       title,
		Description: description,
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.broadcastToStaff(stream.EventNewTicket, stream.NewTicketPayload{
		TicketID:    ticket.ID,
		Number:      ticket.Number,
		Title:       ticket.Title,
		Category:    ticket.Category,
		Priority:    ticket.Priority,
		RequesterID: ticket.RequesterID,
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the actor. Users see their own;
// staff see the filtered set.
func (s *TicketService) ListTickets(ctx context.Context, actor *auth.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		AssigneeID: filter.AssigneeID,
		Category:   filter.Category,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.Role == domain.RoleUser {
		requester := actor.Identity
		repoFilter = repository.TicketFilter{
			RequesterID: &requester,
			Statuses:    filter.Statuses,
			Priorities:  filter.Priorities,
			Limit:       filter.Limit,
			Offset:      filter.Offset,
		}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket with its thread, enforcing visibility. Users
// only see public replies.
func (s *TicketService) GetTicket(ctx context.Context, actor *auth.Principal, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !s.policy.CanView(actor.Role, actor.Identity, ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}

	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleUser {
		msgs = publicOnly(msgs)
	}
	return ticket, msgs, nil
}

// AddMessage appends a message to a ticket thread and announces it.
func (s *TicketService) AddMessage(ctx context.Context, actor *auth.Principal, ticketID string, messageType domain.TicketMessageType, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	if messageType != domain.MessageTypePublicReply && messageType != domain.MessageTypeInternalNote {
		return nil, apperrors.NewValidationError("invalid message type", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanReply(actor.Role, actor.Identity, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	if actor.Role == domain.RoleUser && messageType != domain.MessageTypePublicReply {
		return nil, apperrors.NewForbidden("users can only post public replies")
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorID:    actor.Identity,
		AuthorRole:  actor.Role,
		MessageType: messageType,
		Body:        body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	payload := stream.NewReplyPayload{
		TicketID:    ticket.ID,
		MessageID:   msg.ID,
		AuthorID:    msg.AuthorID,
		AuthorRole:  msg.AuthorRole,
		MessageType: msg.MessageType,
		BodyPreview: stringPreview(msg.Body, 120),
	}
	s.broadcastToStaff(stream.EventNewReply, payload)
	if messageType == domain.MessageTypePublicReply && ticket.RequesterID != actor.Identity {
		s.dispatch(stream.EventNewReply, stream.ToUser(ticket.RequesterID, domain.RoleUser), payload)
	}
	return msg, nil
}

// UpdateStatus performs a guarded lifecycle transition. The state machine
// rejects impossible moves, the policy rejects unpermitted actors, and the
// status-guarded update linearizes concurrent writers per ticket.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *auth.Principal, ticketID string, target domain.TicketStatus, note string) (*domain.Ticket, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if !domain.IsValidTransition(oldStatus, target) {
		return nil, apperrors.NewInvalidTransition("status transition not allowed", map[string]any{
			"from": oldStatus,
			"to":   target,
		})
	}
	if !s.policy.CanTransition(actor.Role, actor.Identity, ticket, target) {
		return nil, apperrors.NewForbidden("transition not permitted for role")
	}

	ticket.Status = target
	switch target {
	case domain.TicketStatusResolved, domain.TicketStatusClosed:
		now := time.Now()
		ticket.ResolvedAt = &now
	case domain.TicketStatusReopened:
		ticket.ResolvedAt = nil
	}

	if err := s.tickets.UpdateStatusGuarded(ctx, ticket, oldStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", nil)
		}
		return nil, apperrors.MapError(err)
	}
	ticket.UpdatedAt = time.Now()

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": target, "note": note})

	payload := stream.TicketStatusPayload{
		TicketID:  ticket.ID,
		Number:    ticket.Number,
		OldStatus: strings.ToLower(string(oldStatus)),
		Status:    strings.ToLower(string(target)),
		Note:      note,
		ActorID:   actor.Identity,
	}
	s.broadcastToStaff(stream.EventTicketStatus, payload)
	s.dispatch(stream.EventTicketStatus, stream.ToUser(ticket.RequesterID, domain.RoleUser), payload)
	return ticket, nil
}

// AssignTicket sets the assignee, validating that the target handle is an
// active staff account.
func (s *TicketService) AssignTicket(ctx context.Context, actor *auth.Principal, ticketID, assigneeHandle string) (*domain.Ticket, error) {
	assigneeHandle = strings.TrimSpace(assigneeHandle)
	if assigneeHandle == "" {
		return nil, apperrors.NewValidationError("assignee required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.CanBeAssigned() {
		return nil, apperrors.NewInvalidTransition("ticket cannot be assigned in current status", map[string]any{
			"status": ticket.Status,
		})
	}
	if !s.policy.CanAssign(actor.Role, actor.Identity, ticket, assigneeHandle) {
		return nil, apperrors.NewForbidden("assignment not permitted")
	}

	assignee, err := s.accounts.GetByHandle(ctx, assigneeHandle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"handle": assigneeHandle})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() || assignee.Status != domain.AccountStatusActive {
		return nil, apperrors.NewValidationError("assignee must be an active staff account", nil)
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &assignee.Handle
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee": deref(oldAssignee)},
		map[string]any{"assignee": assignee.Handle})

	s.broadcastToStaff(stream.EventTicketAssigned, stream.TicketAssignedPayload{
		TicketID:   ticket.ID,
		Number:     ticket.Number,
		AssigneeID: ticket.AssigneeID,
		ActorID:    actor.Identity,
	})
	return ticket, nil
}

// UnassignTicket clears the assignee.
func (s *TicketService) UnassignTicket(ctx context.Context, actor *auth.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanUnassign(actor.Role, actor.Identity, ticket) {
		return nil, apperrors.NewForbidden("unassignment not permitted")
	}
	if ticket.Unassigned() {
		return ticket, nil
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = nil
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
		map[string]any{"assignee": deref(oldAssignee)},
		map[string]any{"assignee": ""})

	s.broadcastToStaff(stream.EventTicketAssigned, stream.TicketAssignedPayload{
		TicketID: ticket.ID,
		Number:   ticket.Number,
		ActorID:  actor.Identity,
	})
	return ticket, nil
}

// UpdatePriority changes ticket priority.
func (s *TicketService) UpdatePriority(ctx context.Context, actor *auth.Principal, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanModify(actor.Role, actor.Identity, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}

	oldPriority := ticket.Priority
	ticket.Priority = priority
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{"priority": priority})
	return ticket, nil
}

// ListHistory returns audit entries for staff with access to the ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor *auth.Principal, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsStaff() || !s.policy.CanView(actor.Role, actor.Identity, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) recordHistory(ctx context.Context, actor *auth.Principal, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actor.Identity,
		ChangedRole: actor.Role,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record ticket history", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// broadcastToStaff pushes one copy of the event per staff role partition.
func (s *TicketService) broadcastToStaff(eventType stream.EventType, payload any) {
	for _, role := range domain.StaffRoles() {
		s.dispatch(eventType, stream.ToRole(role), payload)
	}
}

func (s *TicketService) dispatch(eventType stream.EventType, scope stream.Scope, payload any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(stream.NewEvent(eventType, scope, payload))
}

func publicOnly(msgs []domain.TicketMessage) []domain.TicketMessage {
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageType == domain.MessageTypeInternalNote {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
