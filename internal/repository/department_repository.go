package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// DepartmentRepository encapsulates department persistence. The
// round-robin cursor has a dedicated setter so auto-assignment can
// advance it after the ticket write, never before.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	GetByName(ctx context.Context, name string) (*domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	Update(ctx context.Context, dept *domain.Department) error
	Delete(ctx context.Context, id string) error
	SetLastAssigned(ctx context.Context, id, userID string) error
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository instantiates repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

const departmentColumns = `id, name, description, member_ids, algorithm, last_assigned_id, created_at, updated_at`

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	members, err := marshalMembers(dept)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO departments (name, description, member_ids, algorithm)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		dept.Name,
		dept.Description,
		members,
		dept.Algorithm,
	).Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE id=$1`
	return scanDepartment(r.pool.QueryRow(ctx, query, id))
}

func (r *departmentRepository) GetByName(ctx context.Context, name string) (*domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE name=$1`
	return scanDepartment(r.pool.QueryRow(ctx, query, name))
}

func (r *departmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	members, err := marshalMembers(dept)
	if err != nil {
		return err
	}
	const query = `
        UPDATE departments SET name=$1, description=$2, member_ids=$3, algorithm=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		dept.Name,
		dept.Description,
		members,
		dept.Algorithm,
		dept.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) SetLastAssigned(ctx context.Context, id, userID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE departments SET last_assigned_id=$1, updated_at=NOW() WHERE id=$2`, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func marshalMembers(dept *domain.Department) ([]byte, error) {
	if dept.MemberIDs == nil {
		dept.MemberIDs = []string{}
	}
	return json.Marshal(dept.MemberIDs)
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var (
		dept    domain.Department
		members []byte
	)
	if err := row.Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&members,
		&dept.Algorithm,
		&dept.LastAssignedID,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &dept.MemberIDs); err != nil {
		return nil, err
	}
	return &dept, nil
}
