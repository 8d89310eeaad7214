package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recovery_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Employee is the acting user as stored for this organization.
type Employee struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Branches       []string
	Permissions    []string
	IsSuperAdmin   bool
	LedgerBalance  decimal.Decimal
}

// LedgerEntry is one credit on an employee's cash ledger.
type LedgerEntry struct {
	ID           uuid.UUID
	CaseNo       string
	PaymentID    uuid.UUID
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Description  string
	CreatedAt    time.Time
}

// Repository reads employees and their ledgers.
type Repository interface {
	GetEmployee(ctx context.Context, organizationID, employeeID uuid.UUID) (Employee, error)
	ListLedgerEntries(ctx context.Context, organizationID, employeeID uuid.UUID, limit, offset int) ([]LedgerEntry, int64, error)
	EmployeeNames(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Repo is the pgx implementation.
type Repo struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Repo)(nil)

// New creates a Repo.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetEmployee(ctx context.Context, organizationID, employeeID uuid.UUID) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, branches, permissions, is_super_admin, ledger_balance
		FROM employees
		WHERE organization_id = $1 AND id = $2
	`, organizationID, employeeID).Scan(
		&e.ID, &e.OrganizationID, &e.Name, &e.Branches, &e.Permissions, &e.IsSuperAdmin, &e.LedgerBalance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, apperr.NotFound("employee not found")
	}
	if err != nil {
		return Employee{}, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (r *Repo) ListLedgerEntries(ctx context.Context, organizationID, employeeID uuid.UUID, limit, offset int) ([]LedgerEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM employee_ledger_entries WHERE organization_id = $1 AND employee_id = $2
	`, organizationID, employeeID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, case_no, payment_id, amount, balance_after, description, created_at
		FROM employee_ledger_entries
		WHERE organization_id = $1 AND employee_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, organizationID, employeeID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.CaseNo, &e.PaymentID, &e.Amount, &e.BalanceAfter, &e.Description, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *Repo) EmployeeNames(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name FROM employees WHERE organization_id = $1 AND id = ANY($2)
	`, organizationID, ids)
	if err != nil {
		return nil, fmt.Errorf("employee names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan employee name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
