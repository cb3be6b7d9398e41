package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/domain"
	"github.com/spec-kit/support-stream/internal/repository"
	"github.com/spec-kit/support-stream/internal/sequence"
	"github.com/spec-kit/support-stream/internal/stream"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// fakeTicketRepo keeps tickets in memory and honors the status guard.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) UpdateStatusGuarded(_ context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[ticket.ID]
	if !ok || current.Status != expectedStatus {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := ticket
	return &clone, nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Number == number {
			clone := ticket
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu     sync.Mutex
	msgs   []domain.TicketMessage
	nextID int
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = fmt.Sprintf("msg-%d", r.nextID)
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketMessage
	for _, msg := range r.msgs {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeAccountRepo struct {
	accounts map[string]domain.Account
}

func (r *fakeAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.accounts[account.Handle] = *account
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			clone := a
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			clone := a
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAccountRepo) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	a, ok := r.accounts[handle]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := a
	return &clone, nil
}

// recordingDispatcher captures dispatched events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []stream.Event
}

func (d *recordingDispatcher) Dispatch(event stream.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) byType(eventType stream.EventType) []stream.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []stream.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

type serviceFixture struct {
	svc        *TicketService
	tickets    *fakeTicketRepo
	messages   *fakeMessageRepo
	history    *fakeHistoryRepo
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tickets := newFakeTicketRepo()
	messages := &fakeMessageRepo{}
	history := &fakeHistoryRepo{}
	dispatcher := &recordingDispatcher{}

	accounts := &fakeAccountRepo{accounts: map[string]domain.Account{
		"alice": {ID: "a1", Handle: "alice", Email: "alice@example.com", Role: domain.RoleUser, Status: domain.AccountStatusActive},
		"sam":   {ID: "a2", Handle: "sam", Email: "sam@example.com", Role: domain.RoleSupport, Status: domain.AccountStatusActive},
		"pat":   {ID: "a3", Handle: "pat", Email: "pat@example.com", Role: domain.RoleSupport, Status: domain.AccountStatusActive},
		"root":  {ID: "a4", Handle: "root", Email: "root@example.com", Role: domain.RoleAdmin, Status: domain.AccountStatusActive},
		"gone":  {ID: "a5", Handle: "gone", Email: "gone@example.com", Role: domain.RoleSupport, Status: domain.AccountStatusSuspended},
	}}

	svc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		HistoryRepo: history,
		AccountRepo: accounts,
		Policy:      auth.NewPolicy(),
		Sequences:   sequence.NewGenerator(sequence.NewMemoryStore(), 0, zap.NewNop()),
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})

	return &serviceFixture{
		svc:        svc,
		tickets:    tickets,
		messages:   messages,
		history:    history,
		dispatcher: dispatcher,
	}
}

func principal(identity string, role domain.Role) *auth.Principal {
	return &auth.Principal{AccountID: identity, Identity: identity, Role: role}
}

func (f *serviceFixture) createTicket(t *testing.T, requester string) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), principal(requester, domain.RoleUser), TicketCreateInput{
		Title:       "printer on fire",
		Description: "it prints fire",
		Category:    "hardware",
	})
	require.NoError(t, err)
	f.dispatcher.reset()
	return ticket
}

func TestCreateTicketNumbersAndBroadcast(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.svc.CreateTicket(context.Background(), principal("alice", domain.RoleUser), TicketCreateInput{
		Title:       "vpn down",
		Description: "cannot connect since this morning",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^TCK-\d{4}-0001$`, ticket.Number)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, "alice", ticket.RequesterID)

	// One NEW_TICKET per staff role partition, none to users.
	events := f.dispatcher.byType(stream.EventNewTicket)
	require.Len(t, events, 3)
	seen := map[domain.Role]bool{}
	for _, e := range events {
		assert.Equal(t, stream.ScopeRole, e.Scope.Kind)
		seen[e.Scope.Role] = true
	}
	assert.True(t, seen[domain.RoleSupport])
	assert.True(t, seen[domain.RoleAdmin])
	assert.True(t, seen[domain.RoleSuperAdmin])

	second, err := f.svc.CreateTicket(context.Background(), principal("alice", domain.RoleUser), TicketCreateInput{
		Title:       "vpn still down",
		Description: "second day",
	})
	require.NoError(t, err)
	assert.Regexp(t, `-0002$`, second.Number)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTicket(context.Background(), principal("alice", domain.RoleUser), TicketCreateInput{
		Title: "   ",
	})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestCloseByAssignedSupport(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	_, err := f.svc.AssignTicket(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, "sam")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	f.dispatcher.reset()

	updated, err := f.svc.UpdateStatus(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, domain.TicketStatusClosed, "fixed")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	// Staff roles each get one copy, the requester gets one directly.
	events := f.dispatcher.byType(stream.EventTicketStatus)
	require.Len(t, events, 4)

	var toRequester int
	for _, e := range events {
		payload := e.Data.(stream.TicketStatusPayload)
		assert.Equal(t, "closed", payload.Status)
		assert.Equal(t, "in_progress", payload.OldStatus)
		assert.Equal(t, "fixed", payload.Note)
		if e.Scope.Kind == stream.ScopeUser {
			toRequester++
			assert.Equal(t, "alice", e.Scope.Identity)
			assert.Equal(t, domain.RoleUser, e.Scope.Role)
		}
	}
	assert.Equal(t, 1, toRequester)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	admin := principal("root", domain.RoleAdmin)
	_, err := f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusClosed, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusInProgress, "")
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}

func TestReopenReservedForAdmins(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	admin := principal("root", domain.RoleAdmin)
	_, err := f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusClosed, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, domain.TicketStatusReopened, "")
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	reopened, err := f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusReopened, "customer called back")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusReopened, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestUpdateStatusForbiddenForUnassignedSupport(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	_, err := f.svc.AssignTicket(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, "sam")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), principal("pat", domain.RoleSupport), ticket.ID, domain.TicketStatusInProgress, "")
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

// racingTicketRepo mutates the stored status right after every read,
// simulating a writer that wins the race between load and guarded update.
type racingTicketRepo struct {
	*fakeTicketRepo
	racedStatus domain.TicketStatus
}

func (r *racingTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := r.fakeTicketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	stored := r.tickets[id]
	stored.Status = r.racedStatus
	r.tickets[id] = stored
	r.mu.Unlock()
	return ticket, nil
}

func TestUpdateStatusConcurrentWriterConflict(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	racing := &racingTicketRepo{fakeTicketRepo: f.tickets, racedStatus: domain.TicketStatusResolved}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  racing,
		MessageRepo: f.messages,
		HistoryRepo: f.history,
		AccountRepo: &fakeAccountRepo{accounts: map[string]domain.Account{}},
		Policy:      auth.NewPolicy(),
		Sequences:   sequence.NewGenerator(sequence.NewMemoryStore(), 0, zap.NewNop()),
		Dispatcher:  f.dispatcher,
		Logger:      zap.NewNop(),
	})

	_, err := svc.UpdateStatus(context.Background(), principal("root", domain.RoleAdmin), ticket.ID, domain.TicketStatusInProgress, "")
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}

func TestAssignTicketValidatesAssignee(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")
	admin := principal("root", domain.RoleAdmin)

	_, err := f.svc.AssignTicket(context.Background(), admin, ticket.ID, "nobody")
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)

	_, err = f.svc.AssignTicket(context.Background(), admin, ticket.ID, "alice")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.AssignTicket(context.Background(), admin, ticket.ID, "gone")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	assigned, err := f.svc.AssignTicket(context.Background(), admin, ticket.ID, "pat")
	require.NoError(t, err)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, "pat", *assigned.AssigneeID)
	assert.Len(t, f.dispatcher.byType(stream.EventTicketAssigned), 3)
}

func TestAssignRejectedOnceInProgress(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")
	admin := principal("root", domain.RoleAdmin)

	_, err := f.svc.AssignTicket(context.Background(), admin, ticket.ID, "sam")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)

	_, err = f.svc.AssignTicket(context.Background(), admin, ticket.ID, "pat")
	assert.Equal(t, "INVALID_TRANSITION", apperrors.ToDomainError(err).Code)
}

func TestSupportCannotStealAssignedTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	_, err := f.svc.AssignTicket(context.Background(), principal("sam", domain.RoleSupport), ticket.ID, "sam")
	require.NoError(t, err)

	// Still OPEN, so CanBeAssigned passes; the policy is what stops pat.
	_, err = f.svc.AssignTicket(context.Background(), principal("pat", domain.RoleSupport), ticket.ID, "pat")
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestAddMessageVisibilityAndEvents(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")
	admin := principal("root", domain.RoleAdmin)

	_, err := f.svc.AddMessage(context.Background(), principal("alice", domain.RoleUser), ticket.ID, domain.MessageTypeInternalNote, "sneaky")
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	_, err = f.svc.AddMessage(context.Background(), admin, ticket.ID, domain.MessageTypeInternalNote, "customer is a VIP")
	require.NoError(t, err)
	_, err = f.svc.AddMessage(context.Background(), admin, ticket.ID, domain.MessageTypePublicReply, "we are on it")
	require.NoError(t, err)

	// The requester only receives the public reply.
	var toAlice int
	for _, e := range f.dispatcher.byType(stream.EventNewReply) {
		if e.Scope.Kind == stream.ScopeUser && e.Scope.Identity == "alice" {
			toAlice++
			payload := e.Data.(stream.NewReplyPayload)
			assert.Equal(t, domain.MessageTypePublicReply, payload.MessageType)
		}
	}
	assert.Equal(t, 1, toAlice)

	// And the thread view for the requester hides the note.
	_, msgs, err := f.svc.GetTicket(context.Background(), principal("alice", domain.RoleUser), ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "we are on it", msgs[0].Body)

	_, staffMsgs, err := f.svc.GetTicket(context.Background(), admin, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, staffMsgs, 2)
}

func TestGetTicketNotFound(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.GetTicket(context.Background(), principal("root", domain.RoleAdmin), "missing")
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
	assert.Equal(t, 404, domainErr.HTTPStatus)
}

func TestListTicketsScopesUsersToOwn(t *testing.T) {
	f := newFixture(t)
	f.createTicket(t, "alice")
	f.createTicket(t, "bob")

	mine, err := f.svc.ListTickets(context.Background(), principal("alice", domain.RoleUser), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].RequesterID)

	all, err := f.svc.ListTickets(context.Background(), principal("root", domain.RoleAdmin), TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHistoryRecordsTransitions(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")
	admin := principal("root", domain.RoleAdmin)

	_, err := f.svc.AssignTicket(context.Background(), admin, ticket.ID, "sam")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), admin, ticket.ID, domain.TicketStatusResolved, "done")
	require.NoError(t, err)

	entries, err := f.svc.ListHistory(context.Background(), admin, ticket.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = f.svc.ListHistory(context.Background(), principal("alice", domain.RoleUser), ticket.ID, 10, 0)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestUnassignTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "alice")

	sam := principal("sam", domain.RoleSupport)
	_, err := f.svc.AssignTicket(context.Background(), sam, ticket.ID, "sam")
	require.NoError(t, err)

	_, err = f.svc.UnassignTicket(context.Background(), principal("pat", domain.RoleSupport), ticket.ID)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	released, err := f.svc.UnassignTicket(context.Background(), sam, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, released.AssigneeID)
}
