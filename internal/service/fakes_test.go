package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
)

// memTicketRepo is an in-memory TicketRepository with the same locking
// contract as the postgres implementation: Mutate serializes writers per
// ticket and aborts without change when the callback errors.
type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *memTicketRepo) put(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("t-%d", r.seq)
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *memTicketRepo) Mutate(_ context.Context, id string, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	r.tickets[id] = working.Clone()
	return working, nil
}

func (r *memTicketRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	return result, nil
}

func (r *memTicketRepo) LatestAssignedAt(_ context.Context, userID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	for _, ticket := range r.tickets {
		if ticket.AssigneeID == nil || *ticket.AssigneeID != userID {
			continue
		}
		if ticket.CreatedAt.After(latest) {
			latest = ticket.CreatedAt
		}
	}
	return latest, nil
}

func (r *memTicketRepo) CountOpenAssigned(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ticket := range r.tickets {
		if ticket.AssigneeID == nil || *ticket.AssigneeID != userID {
			continue
		}
		if ticket.Status == domain.TicketStatusOpen || ticket.Status == domain.TicketStatusInProgress {
			count++
		}
	}
	return count, nil
}

type memDepartmentRepo struct {
	mu    sync.Mutex
	seq   int
	depts map[string]*domain.Department
}

func newMemDepartmentRepo() *memDepartmentRepo {
	return &memDepartmentRepo{depts: make(map[string]*domain.Department)}
}

func (r *memDepartmentRepo) put(dept *domain.Department) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *dept
	r.depts[dept.ID] = &copied
}

func (r *memDepartmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	dept.ID = fmt.Sprintf("d-%d", r.seq)
	dept.CreatedAt = time.Now()
	dept.UpdatedAt = dept.CreatedAt
	copied := *dept
	r.depts[dept.ID] = &copied
	return nil
}

func (r *memDepartmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept, ok := r.depts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *dept
	copied.MemberIDs = append([]string(nil), dept.MemberIDs...)
	return &copied, nil
}

func (r *memDepartmentRepo) GetByName(_ context.Context, name string) (*domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dept := range r.depts {
		if dept.Name == name {
			copied := *dept
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memDepartmentRepo) List(_ context.Context) ([]domain.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Department
	for _, dept := range r.depts {
		result = append(result, *dept)
	}
	return result, nil
}

func (r *memDepartmentRepo) Update(_ context.Context, dept *domain.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.depts[dept.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *dept
	r.depts[dept.ID] = &copied
	return nil
}

func (r *memDepartmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.depts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.depts, id)
	return nil
}

func (r *memDepartmentRepo) SetLastAssigned(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dept, ok := r.depts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	dept.LastAssignedID = &userID
	return nil
}

type memRuleRepo struct {
	mu    sync.Mutex
	seq   int
	rules []*domain.AutomationRule
	// listErr, when set, makes every read fail.
	listErr error
}

func newMemRuleRepo() *memRuleRepo {
	return &memRuleRepo{}
}

func (r *memRuleRepo) Create(_ context.Context, rule *domain.AutomationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rule.ID = fmt.Sprintf("r-%d", r.seq)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	copied := *rule
	r.rules = append(r.rules, &copied)
	return nil
}

func (r *memRuleRepo) GetByID(_ context.Context, id string) (*domain.AutomationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			copied := *rule
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memRuleRepo) List(_ context.Context) ([]domain.AutomationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []domain.AutomationRule
	for _, rule := range r.rules {
		result = append(result, *rule)
	}
	return result, nil
}

func (r *memRuleRepo) ListActiveByTrigger(_ context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []domain.AutomationRule
	for _, rule := range r.rules {
		if rule.IsActive && rule.Trigger == trigger {
			result = append(result, *rule)
		}
	}
	return result, nil
}

func (r *memRuleRepo) Update(_ context.Context, rule *domain.AutomationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rules {
		if existing.ID == rule.ID {
			copied := *rule
			r.rules[i] = &copied
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memRuleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rules {
		if existing.ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) put(user *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = fmt.Sprintf("u-%d", r.seq)
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type emittedEvent struct {
	userID string
	event  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	emitted []emittedEvent
}

func (n *fakeNotifier) Emit(_ context.Context, userID, event string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitted = append(n.emitted, emittedEvent{userID: userID, event: event})
	return nil
}

func (n *fakeNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, e := range n.emitted {
		ids = append(ids, e.userID)
	}
	return ids
}

type sentMail struct {
	to      string
	subject string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeBlobStore struct {
	mu      sync.Mutex
	deleted []string
}

func (b *fakeBlobStore) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, ref)
	return nil
}

func (b *fakeBlobStore) deletedRefs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}
