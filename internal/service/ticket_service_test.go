package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	"github.com/spec-kit/helpdesk-core/internal/service"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// recordingDispatcher captures published events in order.
type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) events() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.published...)
}

type ticketFixture struct {
	svc        *service.TicketService
	tickets    *memTicketRepo
	depts      *memDepartmentRepo
	rules      *memRuleRepo
	blobs      *fakeBlobStore
	dispatcher *recordingDispatcher
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	tickets := newMemTicketRepo()
	depts := newMemDepartmentRepo()
	rules := newMemRuleRepo()
	blobs := &fakeBlobStore{}
	dispatcher := &recordingDispatcher{}

	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     tickets,
		DepartmentRepo: depts,
		Resolver:       service.NewAssignmentResolver(tickets),
		Automation:     service.NewAutomationEngine(rules),
		BlobStore:      blobs,
		Dispatcher:     dispatcher,
		Logger:         zap.NewNop(),
	})
	return &ticketFixture{
		svc:        svc,
		tickets:    tickets,
		depts:      depts,
		rules:      rules,
		blobs:      blobs,
		dispatcher: dispatcher,
	}
}

func (f *ticketFixture) createTicket(t *testing.T, creatorID string, input service.TicketCreateInput) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.Create(context.Background(), creatorID, input)
	require.NoError(t, err)
	return ticket
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newTicketFixture(t)

	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{
		Title:       "  Printer jam  ",
		Description: "third floor printer eats paper",
	})

	require.Equal(t, "Printer jam", ticket.Title)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.Equal(t, "General", ticket.Category)
	require.Nil(t, ticket.AssigneeID)
	require.Empty(t, f.dispatcher.events(), "creation notifies nobody but the creator")
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.Create(context.Background(), "u-1", service.TicketCreateInput{
		Title:       "   ",
		Description: "desc",
	})
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))

	_, err = f.svc.Create(context.Background(), "u-1", service.TicketCreateInput{
		Title:       strings.Repeat("x", domain.MaxTitleLength+1),
		Description: "desc",
	})
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))

	_, err = f.svc.Create(context.Background(), "u-1", service.TicketCreateInput{
		Title:       "ok",
		Description: "desc",
		Priority:    domain.TicketPriority("CRITICAL"),
	})
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))
}

func TestCreateRunsOnCreateAutomation(t *testing.T) {
	f := newTicketFixture(t)
	seedRule(t, f.rules, domain.AutomationRule{
		Name:       "urgent to specialist",
		Trigger:    domain.TriggerOnCreate,
		Conditions: domain.RuleConditions{Priority: domain.TicketPriorityUrgent},
		Actions: []domain.RuleAction{
			{Type: domain.ActionAssignTo, AssignTo: &domain.AssignToAction{UserID: "agent-x"}},
		},
		IsActive: true,
	})

	urgent := f.createTicket(t, "u-1", service.TicketCreateInput{
		Title:       "everything is on fire",
		Description: "prod outage",
		Priority:    domain.TicketPriorityUrgent,
	})
	require.NotNil(t, urgent.AssigneeID)
	require.Equal(t, "agent-x", *urgent.AssigneeID)

	stored, err := f.tickets.GetByID(context.Background(), urgent.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssigneeID)
	require.Equal(t, "agent-x", *stored.AssigneeID, "automation result is persisted")

	calm := f.createTicket(t, "u-1", service.TicketCreateInput{
		Title:       "question",
		Description: "how do I export reports",
	})
	require.Nil(t, calm.AssigneeID, "non-matching ticket stays untouched")
}

func TestUpdateOnlyCreatorMayEdit(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	newTitle := "hijacked"
	_, err := f.svc.Update(context.Background(), ticket.ID, "u-2", service.TicketUpdateInput{Title: &newTitle})
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Equal(t, "t", stored.Title, "rejected update leaves the ticket unchanged")
}

func TestUpdatePriorityChangeRunsAutomation(t *testing.T) {
	f := newTicketFixture(t)
	seedRule(t, f.rules, domain.AutomationRule{
		Name:       "escalate urgent",
		Trigger:    domain.TriggerOnPriorityChange,
		Conditions: domain.RuleConditions{Priority: domain.TicketPriorityUrgent},
		Actions: []domain.RuleAction{
			{Type: domain.ActionSetStatus, SetStatus: &domain.SetStatusAction{Value: domain.TicketStatusInProgress}},
		},
		IsActive: true,
	})
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	urgent := domain.TicketPriorityUrgent
	updated, err := f.svc.Update(context.Background(), ticket.ID, "u-1", service.TicketUpdateInput{Priority: &urgent})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, updated.Status)

	// Same priority again: no actual change, no trigger. Reset the status
	// out of band first so a spurious trigger would be visible.
	_, err = f.tickets.Mutate(context.Background(), ticket.ID, func(stored *domain.Ticket) error {
		stored.Status = domain.TicketStatusOpen
		return nil
	})
	require.NoError(t, err)

	reset, err := f.svc.Update(context.Background(), ticket.ID, "u-1", service.TicketUpdateInput{Priority: &urgent})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, reset.Status)
}

func TestChangeStatusGatesAndPublishes(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "u-1", domain.RoleUser)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatus("ARCHIVED"), "agent-1", domain.RoleSupportAgent)
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))

	updated, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "agent-1", domain.RoleSupportAgent)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, updated.Status)

	// Backward move is legal: there is no transition graph.
	reopened, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusOpen, "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, reopened.Status)

	published := f.dispatcher.events()
	require.Len(t, published, 2)
	require.Equal(t, events.EventStatusChanged, published[0].Type)
	require.Equal(t, domain.TicketStatusResolved, published[0].NewStatus)
	require.Equal(t, "agent-1", published[0].ActorID)
	require.NotEmpty(t, published[0].ID)
}

func TestChangeStatusRunsAutomationBeforePublishing(t *testing.T) {
	f := newTicketFixture(t)
	seedRule(t, f.rules, domain.AutomationRule{
		Name:    "resolved drops priority",
		Trigger: domain.TriggerOnStatusChange,
		Actions: []domain.RuleAction{
			{Type: domain.ActionSetPriority, SetPriority: &domain.SetPriorityAction{Value: domain.TicketPriorityLow}},
		},
		IsActive: true,
	})
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{
		Title: "t", Description: "d", Priority: domain.TicketPriorityHigh,
	})

	updated, err := f.svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, domain.TicketPriorityLow, updated.Priority)

	published := f.dispatcher.events()
	require.Len(t, published, 1)
	require.Equal(t, domain.TicketPriorityLow, published[0].Ticket.Priority,
		"the event snapshot includes the automation result")
}

func TestAssignAdminOnly(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.svc.Assign(context.Background(), ticket.ID, "agent-1", "agent-2", domain.RoleSupportAgent)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	updated, err := f.svc.Assign(context.Background(), ticket.ID, "agent-1", "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	require.Equal(t, "agent-1", *updated.AssigneeID)

	published := f.dispatcher.events()
	require.Len(t, published, 1)
	require.Equal(t, events.EventAssigned, published[0].Type)
}

func TestAutoAssignRoundRobinAdvancesCursor(t *testing.T) {
	f := newTicketFixture(t)
	f.depts.put(&domain.Department{
		ID:        "dept-1",
		Name:      "Support",
		MemberIDs: []string{"agent-a", "agent-b"},
		Algorithm: domain.AlgorithmRoundRobin,
	})
	first := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "one", Description: "d"})
	second := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "two", Description: "d"})

	assigned, err := f.svc.AutoAssign(context.Background(), first.ID, "dept-1", "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "agent-a", *assigned.AssigneeID)
	require.Equal(t, "dept-1", *assigned.DepartmentID)

	dept, err := f.depts.GetByID(context.Background(), "dept-1")
	require.NoError(t, err)
	require.NotNil(t, dept.LastAssignedID)
	require.Equal(t, "agent-a", *dept.LastAssignedID)

	assigned, err = f.svc.AutoAssign(context.Background(), second.ID, "dept-1", "admin-1", domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "agent-b", *assigned.AssigneeID)
}

func TestAutoAssignFailures(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.svc.AutoAssign(context.Background(), ticket.ID, "missing", "admin-1", domain.RoleAdmin)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	f.depts.put(&domain.Department{ID: "empty", Name: "Empty", Algorithm: domain.AlgorithmRoundRobin})
	_, err = f.svc.AutoAssign(context.Background(), ticket.ID, "empty", "admin-1", domain.RoleAdmin)
	require.True(t, apperrors.IsCode(err, "INVALID_STATE"))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Nil(t, stored.AssigneeID, "failed auto-assign leaves the ticket untouched")
	require.Empty(t, f.dispatcher.events())
}

func TestAddCommentAndReply(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	withComment, err := f.svc.AddComment(context.Background(), ticket.ID, "have you tried rebooting", "agent-1", nil)
	require.NoError(t, err)
	require.Len(t, withComment.Comments, 1)
	require.NotEmpty(t, withComment.Comments[0].ID)
	require.Equal(t, "agent-1", withComment.Comments[0].AuthorID)

	parentID := withComment.Comments[0].ID
	withReply, err := f.svc.AddComment(context.Background(), ticket.ID, "yes, twice", "u-1", &parentID)
	require.NoError(t, err)
	require.Len(t, withReply.Comments, 1, "replies nest under the parent, not the ticket")
	require.Len(t, withReply.Comments[0].Replies, 1)
	require.Equal(t, "u-1", withReply.Comments[0].Replies[0].AuthorID)

	published := f.dispatcher.events()
	require.Len(t, published, 2)
	require.Equal(t, events.EventCommentAdded, published[0].Type)
	require.NotNil(t, published[0].Comment)
	require.Equal(t, parentID, published[1].Comment.ID, "reply events carry the parent comment")
}

func TestAddCommentValidation(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})

	_, err := f.svc.AddComment(context.Background(), ticket.ID, "   ", "u-1", nil)
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))

	_, err = f.svc.AddComment(context.Background(), ticket.ID, strings.Repeat("a", domain.MaxCommentLength+1), "u-1", nil)
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"))

	ghost := "no-such-comment"
	_, err = f.svc.AddComment(context.Background(), ticket.ID, "reply to nothing", "u-1", &ghost)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Comments, "every rejected comment left the thread unchanged")
	require.Empty(t, f.dispatcher.events())
}

func TestRemoveAttachmentShiftsIndices(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})
	for _, ref := range []string{"blob-a", "blob-b", "blob-c"} {
		_, err := f.svc.AddAttachment(context.Background(), ticket.ID, ref, "u-1")
		require.NoError(t, err)
	}

	updated, err := f.svc.RemoveAttachment(context.Background(), ticket.ID, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"blob-a", "blob-c"}, updated.Attachments)
	require.Equal(t, []string{"blob-b"}, f.blobs.deletedRefs())

	_, err = f.svc.RemoveAttachment(context.Background(), ticket.ID, 2)
	require.True(t, apperrors.IsCode(err, "INVALID_ARGUMENT"), "old indices are stale after a removal")
	require.Equal(t, []string{"blob-b"}, f.blobs.deletedRefs(), "rejected removal deletes nothing")
}

func TestDeleteTicketDropsBlobs(t *testing.T) {
	f := newTicketFixture(t)
	ticket := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "t", Description: "d"})
	_, err := f.svc.AddAttachment(context.Background(), ticket.ID, "blob-a", "u-1")
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), ticket.ID, domain.RoleSupportAgent)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	require.NoError(t, f.svc.Delete(context.Background(), ticket.ID, domain.RoleAdmin))
	require.Equal(t, []string{"blob-a"}, f.blobs.deletedRefs())

	_, err = f.tickets.GetByID(context.Background(), ticket.ID)
	require.Error(t, err)

	err = f.svc.Delete(context.Background(), ticket.ID, domain.RoleAdmin)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestGetScopesEndUsersToOwnTickets(t *testing.T) {
	f := newTicketFixture(t)
	mine := f.createTicket(t, "u-1", service.TicketCreateInput{Title: "mine", Description: "d"})
	theirs := f.createTicket(t, "u-2", service.TicketCreateInput{Title: "theirs", Description: "d"})

	_, err := f.svc.Get(context.Background(), theirs.ID, "u-1", domain.RoleUser)
	require.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	got, err := f.svc.Get(context.Background(), mine.ID, "u-1", domain.RoleUser)
	require.NoError(t, err)
	require.Equal(t, mine.ID, got.ID)

	got, err = f.svc.Get(context.Background(), theirs.ID, "agent-1", domain.RoleSupportAgent)
	require.NoError(t, err)
	require.Equal(t, theirs.ID, got.ID)
}

func TestListScopesEndUsersToOwnTickets(t *testing.T) {
	f := newTicketFixture(t)
	f.createTicket(t, "u-1", service.TicketCreateInput{Title: "one", Description: "d"})
	f.createTicket(t, "u-1", service.TicketCreateInput{Title: "two", Description: "d"})
	f.createTicket(t, "u-2", service.TicketCreateInput{Title: "other", Description: "d"})

	other := "u-2"
	listed, err := f.svc.List(context.Background(), "u-1", domain.RoleUser, repository.TicketFilter{CreatorID: &other})
	require.NoError(t, err)
	require.Len(t, listed, 2, "end-user filters cannot widen visibility")

	listed, err = f.svc.List(context.Background(), "admin-1", domain.RoleAdmin, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 3)
}

func TestMissingTicketIsNotFound(t *testing.T) {
	f := newTicketFixture(t)

	_, err := f.svc.Get(context.Background(), "ghost", "u-1", domain.RoleAdmin)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.svc.AddComment(context.Background(), "ghost", "hello", "u-1", nil)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.svc.ChangeStatus(context.Background(), "ghost", domain.TicketStatusResolved, "admin-1", domain.RoleAdmin)
	require.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}
