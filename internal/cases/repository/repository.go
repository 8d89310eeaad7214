package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recovery_backend/internal/cases/model"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const caseNotFoundMessage = "case not found"

// Case is a live case row joined with the assignee's name.
type Case struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CaseNo         string
	LoanType       string
	CustomerName   string
	EmiAmount      decimal.Decimal
	DueEmiAmount   decimal.NullDecimal
	DueEmi         *int
	Area           string
	AssignedTo     *uuid.UUID
	AssigneeName   *string
	Expired        bool
	ContactNo      []string
	CoApplicants   []model.CoApplicant
	Remarks        []model.Remark
	Location       *model.Location
	Details        map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StageCase returns the due state read by the stage classifier.
func (c Case) StageCase() stage.Case {
	return stage.Case{
		CaseNo:       c.CaseNo,
		EmiAmount:    c.EmiAmount,
		DueEmiAmount: c.DueEmiAmount,
		DueEmi:       c.DueEmi,
		Expired:      c.Expired,
	}
}

// ListParams filters the case list. Limit 0 returns every match.
type ListParams struct {
	Scope      visibility.Scope
	Search     string
	Area       string
	AssignedTo *uuid.UUID
	Unassigned bool
	Expired    *bool
	Limit      int
	Offset     int
}

// History is the follow-up and payment history of one case.
type History struct {
	FollowUps []stage.FollowUp
	Payments  []stage.Payment
}

// Repository is the case store.
type Repository interface {
	List(ctx context.Context, params ListParams) ([]Case, int64, error)
	Get(ctx context.Context, scope visibility.Scope, caseNo string) (Case, error)
	Histories(ctx context.Context, organizationID uuid.UUID, caseNos []string) (map[string]History, error)
	Mutate(ctx context.Context, scope visibility.Scope, caseNo string, fn func(*Case) error) (Case, error)
	EmployeeExists(ctx context.Context, organizationID, employeeID uuid.UUID) (bool, error)
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

const caseColumns = `
	c.id, c.organization_id, c.case_no, c.loan_type, c.customer_name, c.emi_amount,
	c.due_emi_amount, c.due_emi, c.area, c.assigned_to, e.name, c.expired, c.contact_no,
	c.co_applicants, c.remarks, c.location, c.details, c.created_at, c.updated_at`

const caseFrom = `
	FROM cases c
	LEFT JOIN employees e ON e.id = c.assigned_to AND e.organization_id = c.organization_id`

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.CaseNo, &c.LoanType, &c.CustomerName, &c.EmiAmount,
		&c.DueEmiAmount, &c.DueEmi, &c.Area, &c.AssignedTo, &c.AssigneeName, &c.Expired, &c.ContactNo,
		&c.CoApplicants, &c.Remarks, &c.Location, &c.Details, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// fillEmpty replaces nil lists so NOT NULL array and jsonb columns get
// empty values.
func (c *Case) fillEmpty() {
	if c.ContactNo == nil {
		c.ContactNo = []string{}
	}
	if c.CoApplicants == nil {
		c.CoApplicants = []model.CoApplicant{}
	}
	if c.Remarks == nil {
		c.Remarks = []model.Remark{}
	}
}

// listWhere renders the filters of params starting at $1.
func listWhere(params ListParams) (string, []any, int) {
	scopeSQL, args := params.Scope.Predicate(visibility.CaseTarget("c"), 1)
	whereClauses := []string{scopeSQL}
	argIdx := len(args) + 1

	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(`(c.case_no ILIKE $%d ESCAPE '\' OR c.customer_name ILIKE $%d ESCAPE '\')`, argIdx, argIdx))
		args = append(args, sanitize.LikeContains(params.Search))
		argIdx++
	}
	if params.Area != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("c.area = $%d", argIdx))
		args = append(args, strings.ToUpper(params.Area))
		argIdx++
	}
	if params.Unassigned {
		whereClauses = append(whereClauses, "c.assigned_to IS NULL")
	} else if params.AssignedTo != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("c.assigned_to = $%d", argIdx))
		args = append(args, *params.AssignedTo)
		argIdx++
	}
	if params.Expired != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("c.expired = $%d", argIdx))
		args = append(args, *params.Expired)
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func (r *Repo) List(ctx context.Context, params ListParams) ([]Case, int64, error) {
	whereClause, args, argIdx := listWhere(params)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM cases c WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY c.expired ASC, c.case_no ASC", caseColumns, caseFrom, whereClause)
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, params.Limit, params.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	items := make([]Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case: %w", err)
		}
		items = append(items, c)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate cases: %w", rows.Err())
	}
	return items, total, nil
}

func (r *Repo) Get(ctx context.Context, scope visibility.Scope, caseNo string) (Case, error) {
	scopeSQL, args := scope.Predicate(visibility.CaseTarget("c"), 1)
	query := fmt.Sprintf("SELECT %s %s WHERE %s AND c.case_no = $%d", caseColumns, caseFrom, scopeSQL, len(args)+1)
	args = append(args, caseNo)

	c, err := scanCase(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Case{}, apperr.NotFound(caseNotFoundMessage)
	}
	if err != nil {
		return Case{}, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (r *Repo) Histories(ctx context.Context, organizationID uuid.UUID, caseNos []string) (map[string]History, error) {
	out := make(map[string]History, len(caseNos))
	if len(caseNos) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT case_no, date, commit FROM follow_ups
		WHERE organization_id = $1 AND case_no = ANY($2)
		ORDER BY date ASC
	`, organizationID, caseNos)
	if err != nil {
		return nil, fmt.Errorf("load follow-up history: %w", err)
	}
	for rows.Next() {
		var caseNo string
		var fu stage.FollowUp
		if err := rows.Scan(&caseNo, &fu.Date, &fu.Commit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan follow-up history: %w", err)
		}
		h := out[caseNo]
		h.FollowUps = append(h.FollowUps, fu)
		out[caseNo] = h
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate follow-up history: %w", rows.Err())
	}

	rows, err = r.pool.Query(ctx, `
		SELECT case_no, date, amount FROM payments
		WHERE organization_id = $1 AND case_no = ANY($2)
		ORDER BY date ASC
	`, organizationID, caseNos)
	if err != nil {
		return nil, fmt.Errorf("load payment history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var caseNo string
		var p stage.Payment
		if err := rows.Scan(&caseNo, &p.Date, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan payment history: %w", err)
		}
		h := out[caseNo]
		h.Payments = append(h.Payments, p)
		out[caseNo] = h
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate payment history: %w", rows.Err())
	}
	return out, nil
}

// Mutate loads the visible case under a row lock, applies fn and writes the
// agent-owned columns back in the same transaction.
func (r *Repo) Mutate(ctx context.Context, scope visibility.Scope, caseNo string, fn func(*Case) error) (Case, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("begin case update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scopeSQL, args := scope.Predicate(visibility.CaseTarget("c"), 1)
	query := fmt.Sprintf("SELECT %s %s WHERE %s AND c.case_no = $%d FOR UPDATE OF c", caseColumns, caseFrom, scopeSQL, len(args)+1)
	args = append(args, caseNo)

	c, err := scanCase(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Case{}, apperr.NotFound(caseNotFoundMessage)
	}
	if err != nil {
		return Case{}, fmt.Errorf("lock case: %w", err)
	}

	if err := fn(&c); err != nil {
		return Case{}, err
	}
	c.fillEmpty()

	err = tx.QueryRow(ctx, `
		UPDATE cases SET
			assigned_to = $3,
			area = $4,
			contact_no = $5,
			co_applicants = $6,
			remarks = $7,
			location = $8,
			updated_at = now()
		WHERE organization_id = $1 AND case_no = $2
		RETURNING updated_at
	`, c.OrganizationID, c.CaseNo, c.AssignedTo, c.Area, c.ContactNo, c.CoApplicants, c.Remarks, c.Location).Scan(&c.UpdatedAt)
	if err != nil {
		return Case{}, fmt.Errorf("update case: %w", err)
	}

	if c.AssignedTo != nil {
		var name string
		if err := tx.QueryRow(ctx, `SELECT name FROM employees WHERE organization_id = $1 AND id = $2`,
			c.OrganizationID, *c.AssignedTo).Scan(&name); err == nil {
			c.AssigneeName = &name
		}
	} else {
		c.AssigneeName = nil
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("commit case update: %w", err)
	}
	return c, nil
}

func (r *Repo) EmployeeExists(ctx context.Context, organizationID, employeeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM employees WHERE organization_id = $1 AND id = $2)`,
		organizationID, employeeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee: %w", err)
	}
	return exists, nil
}
