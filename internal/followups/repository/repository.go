package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Visit types.
const (
	VisitTelecall = "telecall"
	VisitField    = "visit"
)

// FollowUp is one recorded contact attempt.
type FollowUp struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CaseNo         string
	VisitType      string
	Date           time.Time
	Commit         *time.Time
	Attitude       string
	Remarks        string
	NoReply        bool
	CreatedBy      uuid.UUID
	CreatedByName  *string
	Latitude       *float64
	Longitude      *float64
	SelfieKey      *string
	CreatedAt      time.Time
}

// CaseState is the due state of the case a follow-up belongs to.
type CaseState struct {
	Case     stage.Case
	Payments []stage.Payment
}

// Repository is the follow-up store.
type Repository interface {
	CaseLive(ctx context.Context, scope visibility.Scope, caseNo string) error
	Create(ctx context.Context, fu FollowUp) (FollowUp, error)
	ListByCase(ctx context.Context, scope visibility.Scope, caseNo string) ([]FollowUp, error)
	CaseState(ctx context.Context, organizationID uuid.UUID, caseNo string) (CaseState, error)
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

func caseLiveQuery(scope visibility.Scope, caseNo string) (string, []any) {
	scopeSQL, args := scope.Predicate(visibility.CaseTarget("c"), 1)
	query := fmt.Sprintf(`SELECT c.expired FROM cases c WHERE %s AND c.case_no = $%d`, scopeSQL, len(args)+1)
	return query, append(args, caseNo)
}

// CaseLive returns NotFound for unknown cases and cases outside scope, and a
// validation error for cases that dropped out of the latest upload.
func (r *Repo) CaseLive(ctx context.Context, scope visibility.Scope, caseNo string) error {
	var expired bool
	query, args := caseLiveQuery(scope, caseNo)
	err := r.pool.QueryRow(ctx, query, args...).Scan(&expired)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("case not found")
	}
	if err != nil {
		return fmt.Errorf("check case: %w", err)
	}
	if expired {
		return apperr.Validation("case is no longer active")
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, fu FollowUp) (FollowUp, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO follow_ups (
			organization_id, case_no, visit_type, date, commit, attitude, remarks, no_reply,
			created_by, latitude, longitude, selfie_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, fu.OrganizationID, fu.CaseNo, fu.VisitType, fu.Date, fu.Commit, fu.Attitude, fu.Remarks, fu.NoReply,
		fu.CreatedBy, fu.Latitude, fu.Longitude, fu.SelfieKey).Scan(&fu.ID, &fu.CreatedAt)
	if err != nil {
		return FollowUp{}, fmt.Errorf("insert follow-up: %w", err)
	}
	return fu, nil
}

func (r *Repo) ListByCase(ctx context.Context, scope visibility.Scope, caseNo string) ([]FollowUp, error) {
	scopeSQL, args := scope.Predicate(visibility.FollowUpTarget("f", "c"), 1)
	query := fmt.Sprintf(`
		SELECT f.id, f.organization_id, f.case_no, f.visit_type, f.date, f.commit, f.attitude, f.remarks,
			f.no_reply, f.created_by, e.name, f.latitude, f.longitude, f.selfie_key, f.created_at
		FROM follow_ups f
		JOIN cases c ON c.organization_id = f.organization_id AND c.case_no = f.case_no
		LEFT JOIN employees e ON e.id = f.created_by AND e.organization_id = f.organization_id
		WHERE %s AND f.case_no = $%d
		ORDER BY f.date DESC, f.created_at DESC
	`, scopeSQL, len(args)+1)
	args = append(args, caseNo)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	items := make([]FollowUp, 0)
	for rows.Next() {
		var fu FollowUp
		if err := rows.Scan(&fu.ID, &fu.OrganizationID, &fu.CaseNo, &fu.VisitType, &fu.Date, &fu.Commit,
			&fu.Attitude, &fu.Remarks, &fu.NoReply, &fu.CreatedBy, &fu.CreatedByName, &fu.Latitude,
			&fu.Longitude, &fu.SelfieKey, &fu.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		items = append(items, fu)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate follow-ups: %w", rows.Err())
	}
	return items, nil
}

func (r *Repo) CaseState(ctx context.Context, organizationID uuid.UUID, caseNo string) (CaseState, error) {
	var st CaseState
	st.Case.CaseNo = caseNo
	err := r.pool.QueryRow(ctx, `
		SELECT emi_amount, due_emi_amount, due_emi, expired FROM cases
		WHERE organization_id = $1 AND case_no = $2
	`, organizationID, caseNo).Scan(&st.Case.EmiAmount, &st.Case.DueEmiAmount, &st.Case.DueEmi, &st.Case.Expired)
	if errors.Is(err, pgx.ErrNoRows) {
		return CaseState{}, apperr.NotFound("case not found")
	}
	if err != nil {
		return CaseState{}, fmt.Errorf("load case state: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date, amount FROM payments WHERE organization_id = $1 AND case_no = $2 ORDER BY date ASC
	`, organizationID, caseNo)
	if err != nil {
		return CaseState{}, fmt.Errorf("load case payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p stage.Payment
		if err := rows.Scan(&p.Date, &p.Amount); err != nil {
			return CaseState{}, fmt.Errorf("scan case payment: %w", err)
		}
		st.Payments = append(st.Payments, p)
	}
	return st, rows.Err()
}
