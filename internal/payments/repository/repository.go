package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Payment modes.
const (
	ModeCash   = "cash"
	ModeUPI    = "upi"
	ModeCheque = "cheque"
	ModeNEFT   = "neft"
	ModeOther  = "other"
)

// Payment is one recorded collection.
type Payment struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CaseNo         string
	Amount         decimal.Decimal
	Date           time.Time
	PaymentMode    string
	PenaltyCharges decimal.NullDecimal
	BounceCharges  decimal.NullDecimal
	OtherCharges   decimal.NullDecimal
	Reference      string
	CreatedBy      uuid.UUID
	CreatedByName  *string
	SelfieKey      *string
	CreatedAt      time.Time
}

// AppliedDue is the case due state after a payment was applied.
type AppliedDue struct {
	DueEmiAmount decimal.Decimal
	DueEmi       int
}

// LedgerCredit is the collector's ledger after a cash payment.
type LedgerCredit struct {
	EntryID uuid.UUID
	Balance decimal.Decimal
}

// Recorded is the outcome of Record.
type Recorded struct {
	Payment Payment
	Due     AppliedDue
	Ledger  *LedgerCredit
}

// Repository is the payment store.
type Repository interface {
	Record(ctx context.Context, scope visibility.Scope, p Payment) (Recorded, error)
	ListByCase(ctx context.Context, scope visibility.Scope, caseNo string) ([]Payment, error)
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

// payableCaseQuery locks the case when scope can see it.
func payableCaseQuery(scope visibility.Scope, caseNo string) (string, []any) {
	scopeSQL, args := scope.Predicate(visibility.CaseTarget("c"), 1)
	query := fmt.Sprintf(`
		SELECT c.expired OR c.due_emi_amount IS NULL FROM cases c
		WHERE %s AND c.case_no = $%d
		FOR UPDATE OF c`, scopeSQL, len(args)+1)
	return query, append(args, caseNo)
}

// applyPaymentQuery decrements the due amount with a floor of zero and
// recomputes due_emi in the same statement. Retired cases do not match.
const applyPaymentQuery = `
	UPDATE cases SET
		due_emi_amount = GREATEST(due_emi_amount - $3, 0),
		due_emi = CASE
			WHEN emi_amount > 0 THEN CEIL(GREATEST(due_emi_amount - $3, 0) / emi_amount)::int
			ELSE 0
		END,
		updated_at = now()
	WHERE organization_id = $1 AND case_no = $2 AND NOT expired AND due_emi_amount IS NOT NULL
	RETURNING due_emi_amount, due_emi`

const creditLedgerQuery = `
	UPDATE employees SET ledger_balance = ledger_balance + $3, updated_at = now()
	WHERE organization_id = $1 AND id = $2
	RETURNING ledger_balance`

const insertLedgerEntryQuery = `
	INSERT INTO employee_ledger_entries (organization_id, employee_id, case_no, payment_id, amount, balance_after, description)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id`

// Record inserts the payment, applies it to the case and, for cash, credits
// the collector's ledger. All of it commits or none of it does. Cases outside
// scope are reported as not found.
func (r *Repo) Record(ctx context.Context, scope visibility.Scope, p Payment) (Recorded, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Recorded{}, fmt.Errorf("begin payment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var retired bool
	query, args := payableCaseQuery(scope, p.CaseNo)
	err = tx.QueryRow(ctx, query, args...).Scan(&retired)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recorded{}, apperr.NotFound("case not found")
	}
	if err != nil {
		return Recorded{}, fmt.Errorf("check case: %w", err)
	}
	if retired {
		return Recorded{}, apperr.Validation("case is no longer active")
	}

	var out Recorded
	err = tx.QueryRow(ctx, applyPaymentQuery, p.OrganizationID, p.CaseNo, p.Amount).
		Scan(&out.Due.DueEmiAmount, &out.Due.DueEmi)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recorded{}, apperr.Validation("case is no longer active")
	}
	if err != nil {
		return Recorded{}, fmt.Errorf("apply payment: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO payments (
			organization_id, case_no, amount, date, payment_mode, penalty_charges, bounce_charges,
			other_charges, reference, created_by, selfie_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, p.OrganizationID, p.CaseNo, p.Amount, p.Date, p.PaymentMode, p.PenaltyCharges, p.BounceCharges,
		p.OtherCharges, p.Reference, p.CreatedBy, p.SelfieKey).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Recorded{}, fmt.Errorf("insert payment: %w", err)
	}
	out.Payment = p

	if p.PaymentMode == ModeCash {
		var credit LedgerCredit
		err = tx.QueryRow(ctx, creditLedgerQuery, p.OrganizationID, p.CreatedBy, p.Amount).Scan(&credit.Balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return Recorded{}, apperr.NotFound("collector not found")
		}
		if err != nil {
			return Recorded{}, fmt.Errorf("credit ledger: %w", err)
		}
		description := fmt.Sprintf("Cash collected for case %s", p.CaseNo)
		err = tx.QueryRow(ctx, insertLedgerEntryQuery, p.OrganizationID, p.CreatedBy, p.CaseNo, p.ID,
			p.Amount, credit.Balance, description).Scan(&credit.EntryID)
		if err != nil {
			return Recorded{}, fmt.Errorf("insert ledger entry: %w", err)
		}
		out.Ledger = &credit
	}

	if err := tx.Commit(ctx); err != nil {
		return Recorded{}, fmt.Errorf("commit payment: %w", err)
	}
	return out, nil
}

func (r *Repo) ListByCase(ctx context.Context, scope visibility.Scope, caseNo string) ([]Payment, error) {
	scopeSQL, args := scope.Predicate(visibility.PaymentTarget("p", "c"), 1)
	query := fmt.Sprintf(`
		SELECT p.id, p.organization_id, p.case_no, p.amount, p.date, p.payment_mode, p.penalty_charges,
			p.bounce_charges, p.other_charges, p.reference, p.created_by, e.name, p.selfie_key, p.created_at
		FROM payments p
		JOIN cases c ON c.organization_id = p.organization_id AND c.case_no = p.case_no
		LEFT JOIN employees e ON e.id = p.created_by AND e.organization_id = p.organization_id
		WHERE %s AND p.case_no = $%d
		ORDER BY p.date DESC, p.created_at DESC
	`, scopeSQL, len(args)+1)
	args = append(args, caseNo)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	items := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.CaseNo, &p.Amount, &p.Date, &p.PaymentMode,
			&p.PenaltyCharges, &p.BounceCharges, &p.OtherCharges, &p.Reference, &p.CreatedBy,
			&p.CreatedByName, &p.SelfieKey, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		items = append(items, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate payments: %w", rows.Err())
	}
	return items, nil
}
