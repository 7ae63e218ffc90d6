package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// CreateTicketRequest payload for new tickets.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority,omitempty"`
	Category    string                `json:"category,omitempty"`
	Attachment  *string               `json:"attachment,omitempty"`
}

// UpdateTicketRequest payload for creator edits; absent fields keep
// their current value.
type UpdateTicketRequest struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Priority    *domain.TicketPriority `json:"priority,omitempty"`
	Category    *string                `json:"category,omitempty"`
}

// ChangeStatusRequest payload for status moves.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest payload for direct assignment.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// AutoAssignRequest payload for algorithmic assignment.
type AutoAssignRequest struct {
	DepartmentID string `json:"department_id"`
}

// AddCommentRequest payload for comments and replies.
type AddCommentRequest struct {
	Text            string  `json:"text"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

// AddAttachmentRequest payload for attachment references.
type AddAttachmentRequest struct {
	Ref string `json:"ref"`
}

// TicketSummary is the list-view shape.
type TicketSummary struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     string                `json:"category"`
	CreatorID    string                `json:"creator_id"`
	AssigneeID   *string               `json:"assignee_id,omitempty"`
	DepartmentID *string               `json:"department_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetail is the single-ticket shape with the full document.
type TicketDetail struct {
	TicketSummary
	Description string            `json:"description"`
	Attachments []string          `json:"attachments"`
	Comments    []CommentResponse `json:"comments"`
}

// CommentResponse is one top-level comment with its replies.
type CommentResponse struct {
	ID        string          `json:"id"`
	AuthorID  string          `json:"author_id"`
	Text      string          `json:"text"`
	Replies   []ReplyResponse `json:"replies"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReplyResponse is one second-level reply.
type ReplyResponse struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
