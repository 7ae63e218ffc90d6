package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// RuleRepository encapsulates automation rule persistence. Action decode
// goes through domain.RuleAction's tagged-union unmarshaller, so a
// malformed stored action surfaces here rather than during evaluation.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.AutomationRule) error
	GetByID(ctx context.Context, id string) (*domain.AutomationRule, error)
	List(ctx context.Context) ([]domain.AutomationRule, error)
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error)
	Update(ctx context.Context, rule *domain.AutomationRule) error
	Delete(ctx context.Context, id string) error
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

const ruleColumns = `id, name, trigger_type, conditions, actions, is_active, creator_user_id, created_at, updated_at`

func (r *ruleRepository) Create(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, actions, err := marshalRuleDocs(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO automation_rules (name, trigger_type, conditions, actions, is_active, creator_user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Trigger,
		conditions,
		actions,
		rule.IsActive,
		rule.CreatorID,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepository) GetByID(ctx context.Context, id string) (*domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE id=$1`
	return scanRule(r.pool.QueryRow(ctx, query, id))
}

func (r *ruleRepository) List(ctx context.Context) ([]domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules ORDER BY created_at`
	return r.queryRules(ctx, query)
}

// ListActiveByTrigger returns active rules for the trigger in retrieval
// order; evaluation applies them in exactly this order.
func (r *ruleRepository) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerType) ([]domain.AutomationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE trigger_type=$1 AND is_active ORDER BY created_at`
	return r.queryRules(ctx, query, trigger)
}

func (r *ruleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	conditions, actions, err := marshalRuleDocs(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE automation_rules SET name=$1, trigger_type=$2, conditions=$3, actions=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.Trigger,
		conditions,
		actions,
		rule.IsActive,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) queryRules(ctx context.Context, query string, args ...any) ([]domain.AutomationRule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func marshalRuleDocs(rule *domain.AutomationRule) ([]byte, []byte, error) {
	if rule.Actions == nil {
		rule.Actions = []domain.RuleAction{}
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, err
	}
	return conditions, actions, nil
}

func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	var (
		rule       domain.AutomationRule
		conditions []byte
		actions    []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Trigger,
		&conditions,
		&actions,
		&rule.IsActive,
		&rule.CreatorID,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, err
	}
	return &rule, nil
}
