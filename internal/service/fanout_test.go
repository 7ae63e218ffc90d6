package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/observability"
	"github.com/spec-kit/helpdesk-core/internal/service"
)

type failingMailer struct{}

func (failingMailer) Send(context.Context, string, string, string) error {
	return errors.New("smtp gateway unreachable")
}

func newFanoutFixture(users *memUserRepo, mailer *fakeMailer) (*service.Fanout, *fakeNotifier) {
	notifier := &fakeNotifier{}
	fanout := service.NewFanout(service.FanoutDependencies{
		Notifier: notifier,
		Mailer:   mailer,
		UserRepo: users,
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
	})
	return fanout, notifier
}

func statusEvent(ticket *domain.Ticket, actorID string) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      events.EventStatusChanged,
		Ticket:    ticket,
		ActorID:   actorID,
		NewStatus: ticket.Status,
		Timestamp: time.Now(),
	}
}

func TestRecipientsExcludesActor(t *testing.T) {
	ticket := &domain.Ticket{CreatorID: "u-1", AssigneeID: strPtr("agent-1")}

	got := service.Recipients(statusEvent(ticket, "agent-1"))
	require.Equal(t, []string{"u-1"}, got)

	got = service.Recipients(statusEvent(ticket, "u-1"))
	require.Equal(t, []string{"agent-1"}, got)

	got = service.Recipients(statusEvent(ticket, "admin-1"))
	require.Equal(t, []string{"u-1", "agent-1"}, got)
}

func TestRecipientsDeduplicatesCreatorAssignee(t *testing.T) {
	ticket := &domain.Ticket{CreatorID: "u-1", AssigneeID: strPtr("u-1")}

	got := service.Recipients(statusEvent(ticket, "admin-1"))
	require.Equal(t, []string{"u-1"}, got)

	got = service.Recipients(statusEvent(ticket, "u-1"))
	require.Empty(t, got, "the actor never hears about their own change")
}

func TestRecipientsUnassignedTicket(t *testing.T) {
	ticket := &domain.Ticket{CreatorID: "u-1"}
	got := service.Recipients(statusEvent(ticket, "admin-1"))
	require.Equal(t, []string{"u-1"}, got)
}

func TestRecipientsAssignedEventTargetsAssigneeOnly(t *testing.T) {
	ticket := &domain.Ticket{CreatorID: "u-1", AssigneeID: strPtr("agent-1")}
	event := events.Event{Type: events.EventAssigned, Ticket: ticket, ActorID: "admin-1"}

	require.Equal(t, []string{"agent-1"}, service.Recipients(event))

	// Assigning to yourself notifies nobody.
	event.ActorID = "agent-1"
	require.Empty(t, service.Recipients(event))
}

func TestRecipientsNilTicket(t *testing.T) {
	require.Nil(t, service.Recipients(events.Event{Type: events.EventStatusChanged}))
}

func TestDeliverPushesAndEmails(t *testing.T) {
	users := newMemUserRepo()
	users.put(&domain.User{ID: "u-1", Email: "creator@example.com"})
	users.put(&domain.User{ID: "agent-1", Email: "agent@example.com"})
	mailer := &fakeMailer{}
	fanout, notifier := newFanoutFixture(users, mailer)

	ticket := &domain.Ticket{
		CreatorID:  "u-1",
		AssigneeID: strPtr("agent-1"),
		Title:      "VPN down",
		Status:     domain.TicketStatusResolved,
	}
	require.NoError(t, fanout.Deliver(context.Background(), statusEvent(ticket, "admin-1")))

	require.ElementsMatch(t, []string{"u-1", "agent-1"}, notifier.recipients())
	require.Eventually(t, func() bool { return mailer.count() == 2 },
		2*time.Second, 10*time.Millisecond, "each recipient gets one email")
}

func TestDeliverSkipsUnknownEmailRecipient(t *testing.T) {
	users := newMemUserRepo()
	users.put(&domain.User{ID: "u-1", Email: "creator@example.com"})
	mailer := &fakeMailer{}
	fanout, notifier := newFanoutFixture(users, mailer)

	ticket := &domain.Ticket{
		CreatorID:  "u-1",
		AssigneeID: strPtr("deleted-agent"),
		Title:      "orphaned",
		Status:     domain.TicketStatusOpen,
	}
	require.NoError(t, fanout.Deliver(context.Background(), statusEvent(ticket, "admin-1")))

	require.ElementsMatch(t, []string{"u-1", "deleted-agent"}, notifier.recipients(),
		"realtime delivery does not require a user record")
	require.Eventually(t, func() bool { return mailer.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Give the missing-recipient goroutine a beat; no second email appears.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, mailer.count())
}

func TestDeliverSwallowsEmailFailure(t *testing.T) {
	users := newMemUserRepo()
	users.put(&domain.User{ID: "u-1", Email: "creator@example.com"})

	broken := service.NewFanout(service.FanoutDependencies{
		Notifier: &fakeNotifier{},
		Mailer:   failingMailer{},
		UserRepo: users,
		Metrics:  observability.NewMetrics(),
		Logger:   zap.NewNop(),
	})

	ticket := &domain.Ticket{CreatorID: "u-1", Title: "t", Status: domain.TicketStatusOpen}
	require.NoError(t, broken.Deliver(context.Background(), statusEvent(ticket, "admin-1")),
		"email failure never reaches the publisher")
}

func TestDeliverPayloadShapes(t *testing.T) {
	users := newMemUserRepo()
	mailer := &fakeMailer{}
	fanout, notifier := newFanoutFixture(users, mailer)

	comment := &domain.Comment{ID: "c-1", AuthorID: "agent-1", Text: "looking into it"}
	ticket := &domain.Ticket{CreatorID: "u-1", Title: "t"}
	event := events.Event{
		Type:    events.EventCommentAdded,
		Ticket:  ticket,
		ActorID: "agent-1",
		Comment: comment,
	}
	require.NoError(t, fanout.Deliver(context.Background(), event))
	require.Equal(t, []string{"u-1"}, notifier.recipients())
	require.Equal(t, string(events.EventCommentAdded), notifier.emitted[0].event)
}
