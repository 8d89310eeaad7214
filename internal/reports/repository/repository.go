package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Follow-up report windows.
const (
	ModeCreated = "created"
	ModeCommit  = "commit"
)

// DailyParams selects one day of activity. Limit 0 returns every row.
type DailyParams struct {
	Scope  visibility.Scope
	From   time.Time
	To     time.Time
	Mode   string
	Search string
	Area   string
	Limit  int
	Offset int
}

// FollowUpRow is a follow-up joined with its case and agent.
type FollowUpRow struct {
	ID           uuid.UUID
	CaseNo       string
	CustomerName string
	Area         string
	EmiAmount    decimal.Decimal
	DueEmiAmount decimal.NullDecimal
	DueEmi       *int
	Expired      bool
	VisitType    string
	Date         time.Time
	Commit       *time.Time
	Attitude     string
	Remarks      string
	NoReply      bool
	CreatedBy    uuid.UUID
	AgentName    *string
	Latitude     *float64
	Longitude    *float64
}

// StageCase returns the due state of the row's case.
func (r FollowUpRow) StageCase() stage.Case {
	return stage.Case{
		CaseNo:       r.CaseNo,
		EmiAmount:    r.EmiAmount,
		DueEmiAmount: r.DueEmiAmount,
		DueEmi:       r.DueEmi,
		Expired:      r.Expired,
	}
}

// PaymentRow is a payment joined with its case and agent.
type PaymentRow struct {
	ID             uuid.UUID
	CaseNo         string
	CustomerName   string
	Area           string
	Amount         decimal.Decimal
	Date           time.Time
	PaymentMode    string
	PenaltyCharges decimal.NullDecimal
	BounceCharges  decimal.NullDecimal
	OtherCharges   decimal.NullDecimal
	Reference      string
	CreatedBy      uuid.UUID
	AgentName      *string
}

// Repository reads report rows.
type Repository interface {
	DailyFollowUps(ctx context.Context, params DailyParams) ([]FollowUpRow, int64, error)
	DailyPayments(ctx context.Context, params DailyParams) ([]PaymentRow, int64, error)
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

// dailyWhere renders the window, filters and scope for rows aliased as
// alias joined to cases as c. dateColumn is the column the window applies to.
func dailyWhere(params DailyParams, target visibility.Target, alias, dateColumn string) (string, []any, int) {
	scopeSQL, args := params.Scope.Predicate(target, 1)
	whereClauses := []string{scopeSQL}
	argIdx := len(args) + 1

	whereClauses = append(whereClauses, fmt.Sprintf("%s.%s >= $%d AND %s.%s <= $%d", alias, dateColumn, argIdx, alias, dateColumn, argIdx+1))
	args = append(args, params.From, params.To)
	argIdx += 2

	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(`(c.case_no ILIKE $%d ESCAPE '\' OR c.customer_name ILIKE $%d ESCAPE '\')`, argIdx, argIdx))
		args = append(args, sanitize.LikeContains(params.Search))
		argIdx++
	}
	if params.Area != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("c.area = $%d", argIdx))
		args = append(args, strings.ToUpper(strings.TrimSpace(params.Area)))
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func pageClause(params DailyParams, argIdx int, args []any) (string, []any) {
	if params.Limit <= 0 {
		return "", args
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1), append(args, params.Limit, params.Offset)
}

const followUpFrom = `
	FROM follow_ups f
	JOIN cases c ON c.organization_id = f.organization_id AND c.case_no = f.case_no
	LEFT JOIN employees e ON e.id = f.created_by AND e.organization_id = f.organization_id`

func (r *Repo) DailyFollowUps(ctx context.Context, params DailyParams) ([]FollowUpRow, int64, error) {
	dateColumn := "date"
	if params.Mode == ModeCommit {
		dateColumn = "commit"
	}
	whereClause, args, argIdx := dailyWhere(params, visibility.FollowUpTarget("f", "c"), "f", dateColumn)

	var total int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", followUpFrom, whereClause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count follow-up report: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT f.id, c.case_no, c.customer_name, c.area, c.emi_amount, c.due_emi_amount, c.due_emi, c.expired,
			f.visit_type, f.date, f.commit, f.attitude, f.remarks, f.no_reply, f.created_by, e.name,
			f.latitude, f.longitude
		%s
		WHERE %s
		ORDER BY f.%s ASC, f.id ASC`, followUpFrom, whereClause, dateColumn)
	page, args := pageClause(params, argIdx, args)

	rows, err := r.pool.Query(ctx, query+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("follow-up report: %w", err)
	}
	defer rows.Close()

	items := make([]FollowUpRow, 0)
	for rows.Next() {
		var fu FollowUpRow
		if err := rows.Scan(
			&fu.ID, &fu.CaseNo, &fu.CustomerName, &fu.Area, &fu.EmiAmount, &fu.DueEmiAmount, &fu.DueEmi, &fu.Expired,
			&fu.VisitType, &fu.Date, &fu.Commit, &fu.Attitude, &fu.Remarks, &fu.NoReply, &fu.CreatedBy, &fu.AgentName,
			&fu.Latitude, &fu.Longitude,
		); err != nil {
			return nil, 0, fmt.Errorf("scan follow-up report: %w", err)
		}
		items = append(items, fu)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate follow-up report: %w", rows.Err())
	}
	return items, total, nil
}

const paymentFrom = `
	FROM payments p
	JOIN cases c ON c.organization_id = p.organization_id AND c.case_no = p.case_no
	LEFT JOIN employees e ON e.id = p.created_by AND e.organization_id = p.organization_id`

func (r *Repo) DailyPayments(ctx context.Context, params DailyParams) ([]PaymentRow, int64, error) {
	whereClause, args, argIdx := dailyWhere(params, visibility.PaymentTarget("p", "c"), "p", "date")

	var total int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", paymentFrom, whereClause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment report: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT p.id, c.case_no, c.customer_name, c.area, p.amount, p.date, p.payment_mode,
			p.penalty_charges, p.bounce_charges, p.other_charges, p.reference, p.created_by, e.name
		%s
		WHERE %s
		ORDER BY p.date ASC, p.id ASC`, paymentFrom, whereClause)
	page, args := pageClause(params, argIdx, args)

	rows, err := r.pool.Query(ctx, query+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payment report: %w", err)
	}
	defer rows.Close()

	items := make([]PaymentRow, 0)
	for rows.Next() {
		var p PaymentRow
		if err := rows.Scan(
			&p.ID, &p.CaseNo, &p.CustomerName, &p.Area, &p.Amount, &p.Date, &p.PaymentMode,
			&p.PenaltyCharges, &p.BounceCharges, &p.OtherCharges, &p.Reference, &p.CreatedBy, &p.AgentName,
		); err != nil {
			return nil, 0, fmt.Errorf("scan payment report: %w", err)
		}
		items = append(items, p)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate payment report: %w", rows.Err())
	}
	return items, total, nil
}
