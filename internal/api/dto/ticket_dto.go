package dto

import (
	"time"

	"github.com/spec-kit/support-stream/internal/domain"
)

// CreateTicketRequest payload for ticket creation.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateStatusRequest payload for lifecycle transitions.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
	Note   string              `json:"note"`
}

// UpdatePriorityRequest payload for priority changes.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// AssignRequest payload for assignment.
type AssignRequest struct {
	Assignee string `json:"assignee"`
}

// CreateMessageRequest payload for thread messages.
type CreateMessageRequest struct {
	Body        string                   `json:"body"`
	MessageType domain.TicketMessageType `json:"message_type"`
}

// TicketSummary trims a ticket for list responses.
type TicketSummary struct {
	ID        string                `json:"id"`
	Number    string                `json:"number"`
	Title     string                `json:"title"`
	Category  string                `json:"category"`
	Status    domain.TicketStatus   `json:"status"`
	Priority  domain.TicketPriority `json:"priority"`
	Assignee  *string               `json:"assignee,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// TicketDetailResponse is the full ticket view.
type TicketDetailResponse struct {
	ID          string                  `json:"id"`
	Number      string                  `json:"number"`
	RequesterID string                  `json:"requester_id"`
	Assignee    *string                 `json:"assignee,omitempty"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Category    string                  `json:"category"`
	Status      domain.TicketStatus     `json:"status"`
	Priority    domain.TicketPriority   `json:"priority"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
	Messages    []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse renders one thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	AuthorID    string                   `json:"author_id"`
	AuthorRole  domain.Role              `json:"author_role"`
	MessageType domain.TicketMessageType `json:"message_type"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// TicketHistoryResponse renders one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id"`
	ChangedRole domain.Role             `json:"changed_role"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}
