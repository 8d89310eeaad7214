package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Upload kinds.
const (
	KindCases        = "cases"
	KindCoApplicants = "coapplicants"
)

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const jobNotFoundMessage = "upload job not found"

// ErrJobFinished is returned by Claim for a job that already ran.
var ErrJobFinished = errors.New("upload job already finished")

// Job is one submitted upload. Payload holds the normalized records.
type Job struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	CreatedBy      uuid.UUID
	Kind           string
	Status         string
	FileName       string
	FileKey        *string
	RowCount       int
	RevisionID     *string
	Result         json.RawMessage
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Revision is one applied revision batch.
type Revision struct {
	RevisionID    string
	JobID         uuid.UUID
	FileName      string
	CreatedBy     uuid.UUID
	CreatedByName *string
	Result        json.RawMessage
	AppliedAt     time.Time
}

// RevisionCase is a case as it was archived into a revision batch.
type RevisionCase struct {
	CaseNo       string
	LoanType     string
	CustomerName string
	EmiAmount    decimal.Decimal
	DueEmiAmount decimal.NullDecimal
	DueEmi       *int
	Area         string
	AssignedTo   *uuid.UUID
	Expired      bool
	ContactNo    []string
	Details      map[string]any
	ArchivedAt   time.Time
}

// RevisionCaseParams filters the cases of one revision.
type RevisionCaseParams struct {
	Scope      visibility.Scope
	RevisionID string
	Search     string
	Limit      int
	Offset     int
}

// Repository is the upload job and revision store.
type Repository interface {
	CreateJob(ctx context.Context, job Job, payload []byte) (Job, error)
	GetJob(ctx context.Context, organizationID, id uuid.UUID) (Job, error)
	Claim(ctx context.Context, organizationID, id uuid.UUID) (Job, []byte, error)
	Finish(ctx context.Context, job Job) error
	ListRevisions(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]Revision, int64, error)
	RevisionCases(ctx context.Context, params RevisionCaseParams) ([]RevisionCase, int64, error)
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

const jobColumns = `id, organization_id, created_by, kind, status, file_name, file_key, row_count,
	revision_id, result, error, created_at, updated_at`

func scanJob(row pgx.Row, extra ...any) (Job, error) {
	var j Job
	dest := []any{
		&j.ID, &j.OrganizationID, &j.CreatedBy, &j.Kind, &j.Status, &j.FileName, &j.FileKey, &j.RowCount,
		&j.RevisionID, &j.Result, &j.Error, &j.CreatedAt, &j.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return j, err
}

func (r *Repo) CreateJob(ctx context.Context, job Job, payload []byte) (Job, error) {
	created, err := scanJob(r.pool.QueryRow(ctx, `
		INSERT INTO upload_jobs (id, organization_id, created_by, kind, status, file_name, file_key, row_count, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+jobColumns,
		job.ID, job.OrganizationID, job.CreatedBy, job.Kind, StatusPending, job.FileName, job.FileKey, job.RowCount, payload,
	))
	if err != nil {
		return Job{}, fmt.Errorf("create upload job: %w", err)
	}
	return created, nil
}

func (r *Repo) GetJob(ctx context.Context, organizationID, id uuid.UUID) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM upload_jobs WHERE organization_id = $1 AND id = $2`,
		organizationID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, apperr.NotFound(jobNotFoundMessage)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get upload job: %w", err)
	}
	return job, nil
}

// Claim marks a pending job running and returns its payload. A job left
// running by a crashed worker can be claimed again; its transaction never
// committed.
func (r *Repo) Claim(ctx context.Context, organizationID, id uuid.UUID) (Job, []byte, error) {
	var payload []byte
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE upload_jobs SET status = $3, updated_at = now()
		WHERE organization_id = $1 AND id = $2 AND status IN ($4, $3)
		RETURNING `+jobColumns+`, payload`,
		organizationID, id, StatusRunning, StatusPending,
	), &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.GetJob(ctx, organizationID, id)
		if getErr != nil {
			return Job{}, nil, getErr
		}
		return existing, nil, ErrJobFinished
	}
	if err != nil {
		return Job{}, nil, fmt.Errorf("claim upload job: %w", err)
	}
	return job, payload, nil
}

// Finish stores the terminal state of job and drops its payload.
func (r *Repo) Finish(ctx context.Context, job Job) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE upload_jobs
		SET status = $3, revision_id = $4, result = $5, error = $6, payload = '[]'::jsonb, updated_at = now()
		WHERE organization_id = $1 AND id = $2
	`, job.OrganizationID, job.ID, job.Status, job.RevisionID, job.Result, job.Error)
	if err != nil {
		return fmt.Errorf("finish upload job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(jobNotFoundMessage)
	}
	return nil
}

func (r *Repo) ListRevisions(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]Revision, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM upload_jobs WHERE organization_id = $1 AND revision_id IS NOT NULL
	`, organizationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count revisions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT j.revision_id, j.id, j.file_name, j.created_by, e.name, j.result, j.updated_at
		FROM upload_jobs j
		LEFT JOIN employees e ON e.id = j.created_by AND e.organization_id = j.organization_id
		WHERE j.organization_id = $1 AND j.revision_id IS NOT NULL
		ORDER BY j.revision_id DESC
		LIMIT $2 OFFSET $3
	`, organizationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]Revision, 0)
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.RevisionID, &rev.JobID, &rev.FileName, &rev.CreatedBy, &rev.CreatedByName, &rev.Result, &rev.AppliedAt); err != nil {
			return nil, 0, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, rev)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate revisions: %w", rows.Err())
	}
	return items, total, nil
}

func revisionCaseWhere(params RevisionCaseParams) (string, []any, int) {
	scopeSQL, args := params.Scope.Predicate(visibility.CaseRevisionTarget("r"), 1)
	whereClauses := []string{scopeSQL}
	argIdx := len(args) + 1

	whereClauses = append(whereClauses, fmt.Sprintf("r.revision_id = $%d", argIdx))
	args = append(args, params.RevisionID)
	argIdx++

	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(`(r.case_no ILIKE $%d ESCAPE '\' OR r.customer_name ILIKE $%d ESCAPE '\')`, argIdx, argIdx))
		args = append(args, sanitize.LikeContains(params.Search))
		argIdx++
	}
	return strings.Join(whereClauses, " AND "), args, argIdx
}

func (r *Repo) RevisionCases(ctx context.Context, params RevisionCaseParams) ([]RevisionCase, int64, error) {
	whereClause, args, argIdx := revisionCaseWhere(params)

	var total int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM case_revisions r WHERE %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count revision cases: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT r.case_no, r.loan_type, r.customer_name, r.emi_amount, r.due_emi_amount, r.due_emi, r.area,
			r.assigned_to, r.expired, r.contact_no, r.details, r.archived_at
		FROM case_revisions r
		WHERE %s
		ORDER BY r.case_no ASC
		LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list revision cases: %w", err)
	}
	defer rows.Close()

	items := make([]RevisionCase, 0)
	for rows.Next() {
		var c RevisionCase
		if err := rows.Scan(
			&c.CaseNo, &c.LoanType, &c.CustomerName, &c.EmiAmount, &c.DueEmiAmount, &c.DueEmi, &c.Area,
			&c.AssignedTo, &c.Expired, &c.ContactNo, &c.Details, &c.ArchivedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan revision case: %w", err)
		}
		items = append(items, c)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate revision cases: %w", rows.Err())
	}
	return items, total, nil
}
