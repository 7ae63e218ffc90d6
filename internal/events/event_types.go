package events

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// EventType enumerates lifecycle event identifiers. The values double as
// the real-time wire event names.
type EventType string

const (
	EventStatusChanged   EventType = "ticketStatusUpdated"
	EventAssigned        EventType = "ticketAssigned"
	EventCommentAdded    EventType = "newComment"
	EventAttachmentAdded EventType = "attachmentAdded"
)

// Event describes one ticket mutation. Events are ephemeral: produced and
// consumed within a single request, never persisted. Ticket is a snapshot
// taken after the mutation committed.
type Event struct {
	ID        string
	Type      EventType
	Ticket    *domain.Ticket
	ActorID   string
	Timestamp time.Time

	// Payload fields, one per event kind.
	NewStatus  domain.TicketStatus
	Comment    *domain.Comment
	Attachment string
}
