package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// ValidStatus reports whether s is one of the three known states.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
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

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Length bounds enforced at creation.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxCommentLength     = 2000
)

// Ticket is the aggregate for support requests. Comments and attachments
// live on the document itself; attachment deletion is by positional index,
// so indices shift after every removal.
type Ticket struct {
	ID           string         `json:"id"`
	CreatorID    string         `json:"creator_id"`
	DepartmentID *string        `json:"department_id,omitempty"`
	AssigneeID   *string        `json:"assignee_id,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       TicketStatus   `json:"status"`
	Priority     TicketPriority `json:"priority"`
	Category     string         `json:"category"`
	Attachments  []string       `json:"attachments"`
	Comments     []Comment      `json:"comments"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the stored document.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	copied := *t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		copied.AssigneeID = &id
	}
	if t.DepartmentID != nil {
		id := *t.DepartmentID
		copied.DepartmentID = &id
	}
	copied.Attachments = append([]string(nil), t.Attachments...)
	copied.Comments = make([]Comment, len(t.Comments))
	for i, c := range t.Comments {
		copied.Comments[i] = c
		copied.Comments[i].Replies = append([]Reply(nil), c.Replies...)
	}
	return &copied
}

// FindComment returns the top-level comment with the given id, or nil.
func (t *Ticket) FindComment(commentID string) *Comment {
	for i := range t.Comments {
		if t.Comments[i].ID == commentID {
			return &t.Comments[i]
		}
	}
	return nil
}

// Comment is a top-level thread entry on a ticket.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is a lightweight second-level record. Replies never thread further.
type Reply struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
