package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/events"
	"github.com/spec-kit/helpdesk-core/internal/mail"
	"github.com/spec-kit/helpdesk-core/internal/notify"
	"github.com/spec-kit/helpdesk-core/internal/observability"
	"github.com/spec-kit/helpdesk-core/internal/repository"
)

// EventPayload is the wire contract for real-time delivery.
type EventPayload struct {
	Message    string          `json:"message"`
	Ticket     *domain.Ticket  `json:"ticket"`
	Comment    *domain.Comment `json:"comment,omitempty"`
	Attachment string          `json:"attachment,omitempty"`
}

// Fanout translates lifecycle events into concrete deliveries: one push
// per recipient through the Notifier and, independently, a best-effort
// email. It subscribes to the dispatcher, which publishes only after the
// triggering mutation committed.
type Fanout struct {
	notifier notify.Notifier
	mailer   mail.Sender
	users    repository.UserRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// FanoutDependencies bundles collaborators for fanout.
type FanoutDependencies struct {
	Notifier notify.Notifier
	Mailer   mail.Sender
	UserRepo repository.UserRepository
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewFanout constructs the fanout.
func NewFanout(deps FanoutDependencies) *Fanout {
	return &Fanout{
		notifier: deps.Notifier,
		mailer:   deps.Mailer,
		users:    deps.UserRepo,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// RegisterHandlers subscribes fanout to every lifecycle event type.
func (f *Fanout) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventStatusChanged, f.Deliver)
	dispatcher.Subscribe(events.EventAssigned, f.Deliver)
	dispatcher.Subscribe(events.EventCommentAdded, f.Deliver)
	dispatcher.Subscribe(events.EventAttachmentAdded, f.Deliver)
}

// Deliver fans one event out to its recipients. Transport and email
// failures are logged, never propagated.
func (f *Fanout) Deliver(ctx context.Context, event events.Event) error {
	payload := buildPayload(event)
	for _, userID := range Recipients(event) {
		if err := f.notifier.Emit(ctx, userID, string(event.Type), payload); err != nil {
			f.logger.Warn("realtime delivery failed",
				zap.String("user_id", userID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
		f.metrics.RecordDelivery("realtime", string(event.Type))

		go f.sendEmail(userID, event, payload.Message)
	}
	return nil
}

// Recipients computes {creator, assignee} minus the acting user,
// deduplicated. Assignment events go to the new assignee alone.
func Recipients(event events.Event) []string {
	ticket := event.Ticket
	if ticket == nil {
		return nil
	}

	var candidates []string
	if event.Type == events.EventAssigned {
		if ticket.AssigneeID != nil {
			candidates = []string{*ticket.AssigneeID}
		}
	} else {
		candidates = []string{ticket.CreatorID}
		if ticket.AssigneeID != nil {
			candidates = append(candidates, *ticket.AssigneeID)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	recipients := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == "" || id == event.ActorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	return recipients
}

// sendEmail runs detached from the request: the caller's context may be
// gone by the time delivery finishes.
func (f *Fanout) sendEmail(userID string, event events.Event, message string) {
	ctx := context.Background()
	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			f.logger.Warn("email recipient lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	subject := emailSubject(event)
	if err := f.mailer.Send(ctx, user.Email, subject, message); err != nil {
		f.logger.Warn("email delivery failed",
			zap.String("user_id", userID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}
	f.metrics.RecordDelivery("email", string(event.Type))
}

func buildPayload(event events.Event) EventPayload {
	payload := EventPayload{Ticket: event.Ticket}
	title := ""
	if event.Ticket != nil {
		title = event.Ticket.Title
	}
	switch event.Type {
	case events.EventStatusChanged:
		payload.Message = fmt.Sprintf("Ticket <strong>%s</strong> status changed to %s", title, event.NewStatus)
	case events.EventAssigned:
		payload.Message = fmt.Sprintf("Ticket <strong>%s</strong> has been assigned to you", title)
	case events.EventCommentAdded:
		payload.Message = fmt.Sprintf("New comment on ticket <strong>%s</strong>", title)
		payload.Comment = event.Comment
	case events.EventAttachmentAdded:
		payload.Message = fmt.Sprintf("New attachment on ticket <strong>%s</strong>", title)
		payload.Attachment = event.Attachment
	}
	return payload
}

func emailSubject(event events.Event) string {
	title := ""
	if event.Ticket != nil {
		title = event.Ticket.Title
	}
	switch event.Type {
	case events.EventStatusChanged:
		return fmt.Sprintf("[Helpdesk] %s: status changed to %s", title, event.NewStatus)
	case events.EventAssigned:
		return fmt.Sprintf("[Helpdesk] %s: assigned to you", title)
	case events.EventCommentAdded:
		return fmt.Sprintf("[Helpdesk] %s: new comment", title)
	case events.EventAttachmentAdded:
		return fmt.Sprintf("[Helpdesk] %s: new attachment", title)
	}
	return "[Helpdesk] " + title
}
