package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/blob"
	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// errAutomationNoChange aborts the automation write-back when no rule
// mutated the ticket, so a trigger persists at most once.
var errAutomationNoChange = errors.New("automation produced no change")

// TicketService is the single authority for ticket mutations. Every
// operation applies its change atomically, runs automation where the
// trigger demands it, and publishes lifecycle events only after the
// mutation is durably committed.
type TicketService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	resolver    *AssignmentResolver
	automation  *AutomationEngine
	blobs       blob.Store
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	DepartmentRepo repository.DepartmentRepository
	Resolver       *AssignmentResolver
	Automation     *AutomationEngine
	BlobStore      blob.Store
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		departments: deps.DepartmentRepo,
		resolver:    deps.Resolver,
		automation:  deps.Automation,
		blobs:       deps.BlobStore,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    string
	Attachment  *string
}

// TicketUpdateInput carries the creator-editable fields; nil means keep.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	Category    *string
}

// Create makes a new ticket for creatorID, always Open and unassigned,
// then runs ON_CREATE automation. The creator is the only stakeholder at
// this point, so no event is emitted.
func (s *TicketService) Create(ctx context.Context, creatorID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || len(title) > domain.MaxTitleLength {
		return nil, apperrors.NewInvalidArgument("title must be non-empty and at most 200 characters", nil)
	}
	if description == "" || len(description) > domain.MaxDescriptionLength {
		return nil, apperrors.NewInvalidArgument("description must be non-empty and at most 5000 characters", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewInvalidArgument("invalid priority", map[string]any{"priority": priority})
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = "General"
	}

	ticket := &domain.Ticket{
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Category:    category,
		Attachments: []string{},
		Comments:    []domain.Comment{},
	}
	if input.Attachment != nil && *input.Attachment != "" {
		ticket.Attachments = append(ticket.Attachments, *input.Attachment)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket = s.runAutomation(ctx, ticket, domain.TriggerOnCreate)
	return ticket, nil
}

// Update edits title/description/priority/category. Only the creator may
// update; the role is deliberately not consulted here.
func (s *TicketService) Update(ctx context.Context, ticketID, actingUserID string, input TicketUpdateInput) (*domain.Ticket, error) {
	priorityChanged := false
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		if t.CreatorID != actingUserID {
			return apperrors.NewForbidden("only the ticket creator may update it")
		}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" || len(title) > domain.MaxTitleLength {
				return apperrors.NewInvalidArgument("title must be non-empty and at most 200 characters", nil)
			}
			t.Title = title
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description == "" || len(description) > domain.MaxDescriptionLength {
				return apperrors.NewInvalidArgument("description must be non-empty and at most 5000 characters", nil)
			}
			t.Description = description
		}
		if input.Priority != nil {
			if !domain.ValidPriority(*input.Priority) {
				return apperrors.NewInvalidArgument("invalid priority", map[string]any{"priority": *input.Priority})
			}
			priorityChanged = t.Priority != *input.Priority
			t.Priority = *input.Priority
		}
		if input.Category != nil && strings.TrimSpace(*input.Category) != "" {
			t.Category = strings.TrimSpace(*input.Category)
		}
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}
	if priorityChanged {
		ticket = s.runAutomation(ctx, ticket, domain.TriggerOnPriorityChange)
	}
	return ticket, nil
}

// ChangeStatus moves the ticket to any of the three valid states. There
// is no transition graph: only the role gate applies, and backward moves
// are allowed. Emits ticketStatusUpdated to {creator, assignee} minus the
// actor.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actingUserID string, role domain.Role) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewInvalidArgument("invalid status", map[string]any{"status": newStatus})
	}
	if err := authorize(opChangeStatus, role); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		t.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	ticket = s.runAutomation(ctx, ticket, domain.TriggerOnStatusChange)

	s.publish(ctx, events.Event{
		Type:      events.EventStatusChanged,
		Ticket:    ticket.Clone(),
		ActorID:   actingUserID,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// Assign sets the assignee directly. Admin only. Emits ticketAssigned to
// the new assignee unless they are the actor.
func (s *TicketService) Assign(ctx context.Context, ticketID, assigneeID, actingUserID string, role domain.Role) (*domain.Ticket, error) {
	if err := authorize(opAssign, role); err != nil {
		return nil, err
	}
	if assigneeID == "" {
		return nil, apperrors.NewInvalidArgument("assignee required", nil)
	}

	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		t.AssigneeID = &assigneeID
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventAssigned,
		Ticket:  ticket.Clone(),
		ActorID: actingUserID,
	})
	return ticket, nil
}

// AutoAssign delegates assignee selection to the department's configured
// algorithm. The ticket is persisted before the round-robin cursor, so a
// crash in between leaves the cursor merely stale, never the ticket
// unassigned.
func (s *TicketService) AutoAssign(ctx context.Context, ticketID, departmentID, actingUserID string, role domain.Role) (*domain.Ticket, error) {
	if err := authorize(opAutoAssign, role); err != nil {
		return nil, err
	}

	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"department_id": departmentID})
		}
		return nil, apperrors.MapError(err)
	}

	assigneeID, err := s.resolver.NextAssignee(ctx, dept)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		t.AssigneeID = &assigneeID
		t.DepartmentID = &dept.ID
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	if dept.Algorithm == domain.AlgorithmRoundRobin {
		if err := s.departments.SetLastAssigned(ctx, dept.ID, assigneeID); err != nil {
			// Stale cursor self-heals on the next call.
			s.logger.Warn("round-robin cursor update failed",
				zap.String("department_id", dept.ID),
				zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:    events.EventAssigned,
		Ticket:  ticket.Clone(),
		ActorID: actingUserID,
	})
	return ticket, nil
}

// AddComment appends a top-level comment, or a reply when
// parentCommentID is given. Replies require an existing top-level parent
// and never thread further. Comments are not an automation trigger.
// Emits newComment to {creator, assignee} minus the actor.
func (s *TicketService) AddComment(ctx context.Context, ticketID, text, actingUserID string, parentCommentID *string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewInvalidArgument("comment text required", nil)
	}
	if len(text) > domain.MaxCommentLength {
		return nil, apperrors.NewInvalidArgument("comment exceeds 2000 characters", nil)
	}

	var affected domain.Comment
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		now := time.Now()
		if parentCommentID != nil {
			parent := t.FindComment(*parentCommentID)
			if parent == nil {
				return apperrors.NewNotFound("comment", map[string]any{"comment_id": *parentCommentID})
			}
			parent.Replies = append(parent.Replies, domain.Reply{
				AuthorID:  actingUserID,
				Text:      text,
				CreatedAt: now,
			})
			affected = *parent
			affected.Replies = append([]domain.Reply(nil), parent.Replies...)
			return nil
		}
		comment := domain.Comment{
			ID:        uuid.NewString(),
			AuthorID:  actingUserID,
			Text:      text,
			Replies:   []domain.Reply{},
			CreatedAt: now,
		}
		t.Comments = append(t.Comments, comment)
		affected = comment
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	s.publish(ctx, events.Event{
		Type:    events.EventCommentAdded,
		Ticket:  ticket.Clone(),
		ActorID: actingUserID,
		Comment: &affected,
	})
	return ticket, nil
}

// AddAttachment appends a blob reference to the ordered attachment list.
// Emits attachmentAdded to {creator, assignee} minus the actor.
func (s *TicketService) AddAttachment(ctx context.Context, ticketID, blobRef, actingUserID string) (*domain.Ticket, error) {
	if strings.TrimSpace(blobRef) == "" {
		return nil, apperrors.NewInvalidArgument("attachment reference required", nil)
	}

	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		t.Attachments = append(t.Attachments, blobRef)
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	s.publish(ctx, events.Event{
		Type:       events.EventAttachmentAdded,
		Ticket:     ticket.Clone(),
		ActorID:    actingUserID,
		Attachment: blobRef,
	})
	return ticket, nil
}

// RemoveAttachment splices the blob reference at index out of the list,
// shifting every subsequent index down by one, and asks the blob store to
// drop the object. Callers must not cache indices across mutations.
func (s *TicketService) RemoveAttachment(ctx context.Context, ticketID string, index int) (*domain.Ticket, error) {
	var removed string
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		if index < 0 || index >= len(t.Attachments) {
			return apperrors.NewInvalidArgument("attachment index out of range", map[string]any{"index": index})
		}
		removed = t.Attachments[index]
		t.Attachments = append(t.Attachments[:index], t.Attachments[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}

	if err := s.blobs.Delete(ctx, removed); err != nil {
		s.logger.Warn("blob delete failed", zap.String("ref", removed), zap.Error(err))
	}
	return ticket, nil
}

// Delete removes the ticket and asks the blob store to drop every
// attachment. Admin only.
func (s *TicketService) Delete(ctx context.Context, ticketID string, role domain.Role) error {
	if err := authorize(opDelete, role); err != nil {
		return err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return mapTicketErr(err, ticketID)
	}

	for _, ref := range ticket.Attachments {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			s.logger.Warn("blob delete failed", zap.String("ref", ref), zap.Error(err))
		}
	}

	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return mapTicketErr(err, ticketID)
	}
	return nil
}

// Get fetches one ticket. End-users see only their own tickets; agents
// and admins see all.
func (s *TicketService) Get(ctx context.Context, ticketID, actingUserID string, role domain.Role) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapTicketErr(err, ticketID)
	}
	if role == domain.RoleUser && ticket.CreatorID != actingUserID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// List returns tickets visible to the principal. End-users are scoped to
// their own tickets regardless of the requested filter.
func (s *TicketService) List(ctx context.Context, actingUserID string, role domain.Role, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if role == domain.RoleUser {
		filter.CreatorID = &actingUserID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// runAutomation evaluates rules for the trigger and persists the result
// once when anything mutated. Failures never propagate: the triggering
// operation already succeeded, so errors are logged and the committed
// snapshot returned unchanged.
func (s *TicketService) runAutomation(ctx context.Context, ticket *domain.Ticket, trigger domain.TriggerType) *domain.Ticket {
	mutated, err := s.tickets.Mutate(ctx, ticket.ID, func(t *domain.Ticket) error {
		changed, err := s.automation.Apply(ctx, t, trigger)
		if err != nil {
			return err
		}
		if !changed {
			return errAutomationNoChange
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errAutomationNoChange) {
			s.logger.Warn("automation evaluation failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("trigger", string(trigger)),
				zap.Error(err))
		}
		return ticket
	}
	return mutated
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapTicketErr(err error, ticketID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}
