// Package repository implements the bulk replace on Postgres. The whole
// replace runs in one transaction holding an advisory lock for the
// organization, so concurrent uploads for one organization queue up.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recovery_backend/internal/cases/model"
	"recovery_backend/internal/ingest"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertChunkSize = 1000

// Repo is the pgx-backed replace store.
type Repo struct {
	pool *pgxpool.Pool
}

var (
	_ ingest.ReplaceStore     = (*Repo)(nil)
	_ ingest.CoApplicantStore = (*Repo)(nil)
	_ ingest.ReplaceTx        = (*replaceTx)(nil)
)

// New creates a Repo.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const lockOrganizationQuery = `SELECT pg_advisory_xact_lock(hashtextextended('cases.replace:' || $1::text, 0))`

// WithOrganizationLock runs fn in a transaction that holds the
// organization's replace lock until commit or rollback.
func (r *Repo) WithOrganizationLock(ctx context.Context, orgID uuid.UUID, fn func(tx ingest.ReplaceTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, lockOrganizationQuery, orgID); err != nil {
		return fmt.Errorf("lock organization: %w", err)
	}
	if err := fn(&replaceTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

type replaceTx struct {
	tx pgx.Tx
}

const archiveCasesQuery = `
	INSERT INTO case_revisions (
		revision_id, organization_id, source_id, case_no, loan_type, customer_name,
		emi_amount, due_emi_amount, due_emi, area, assigned_to, expired,
		contact_no, co_applicants, remarks, location, details, created_at, updated_at
	)
	SELECT $2, organization_id, id, case_no, loan_type, customer_name,
		emi_amount, due_emi_amount, due_emi, area, assigned_to, expired,
		contact_no, co_applicants, remarks, location, details, created_at, updated_at
	FROM cases
	WHERE organization_id = $1`

func (t *replaceTx) ArchiveCases(ctx context.Context, orgID uuid.UUID, revisionID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, archiveCasesQuery, orgID, revisionID)
	if err != nil {
		return 0, fmt.Errorf("archive cases: %w", err)
	}
	return tag.RowsAffected(), nil
}

const archiveFollowUpsQuery = `
	INSERT INTO follow_up_revisions (
		revision_id, organization_id, source_id, case_no, visit_type, date, commit,
		attitude, remarks, no_reply, created_by, latitude, longitude, selfie_key, created_at
	)
	SELECT $2, organization_id, id, case_no, visit_type, date, commit,
		attitude, remarks, no_reply, created_by, latitude, longitude, selfie_key, created_at
	FROM follow_ups
	WHERE organization_id = $1 AND commit < $3`

func (t *replaceTx) ArchiveFollowUps(ctx context.Context, orgID uuid.UUID, revisionID string, before time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, archiveFollowUpsQuery, orgID, revisionID, before)
	if err != nil {
		return 0, fmt.Errorf("archive follow-ups: %w", err)
	}
	return tag.RowsAffected(), nil
}

const archivePaymentsQuery = `
	INSERT INTO payment_revisions (
		revision_id, organization_id, source_id, case_no, amount, date, payment_mode,
		penalty_charges, bounce_charges, other_charges, reference, created_by, selfie_key, created_at
	)
	SELECT $2, organization_id, id, case_no, amount, date, payment_mode,
		penalty_charges, bounce_charges, other_charges, reference, created_by, selfie_key, created_at
	FROM payments
	WHERE organization_id = $1`

func (t *replaceTx) ArchivePayments(ctx context.Context, orgID uuid.UUID, revisionID string) (int64, error) {
	tag, err := t.tx.Exec(ctx, archivePaymentsQuery, orgID, revisionID)
	if err != nil {
		return 0, fmt.Errorf("archive payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// upsertCaseQuery overwrites the upload-owned columns. Assignment, remarks,
// co-applicants and location belong to agents and are left alone.
const upsertCaseQuery = `
	INSERT INTO cases (
		organization_id, case_no, loan_type, customer_name, emi_amount,
		due_emi_amount, due_emi, area, contact_no, details, expired
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false)
	ON CONFLICT (organization_id, case_no) DO UPDATE SET
		loan_type = EXCLUDED.loan_type,
		customer_name = EXCLUDED.customer_name,
		emi_amount = EXCLUDED.emi_amount,
		due_emi_amount = EXCLUDED.due_emi_amount,
		due_emi = EXCLUDED.due_emi,
		area = EXCLUDED.area,
		details = EXCLUDED.details,
		expired = false,
		contact_no = ARRAY(
			SELECT n FROM unnest(cases.contact_no || EXCLUDED.contact_no) WITH ORDINALITY AS t(n, i)
			GROUP BY n ORDER BY min(i)
		),
		updated_at = now()`

func (t *replaceTx) UpsertCases(ctx context.Context, orgID uuid.UUID, records []ingest.CaseRecord) (int64, error) {
	var total int64
	for start := 0; start < len(records); start += upsertChunkSize {
		end := min(start+upsertChunkSize, len(records))

		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			details, err := json.Marshal(rec.Details)
			if err != nil {
				return total, fmt.Errorf("encode details for %s: %w", rec.CaseNo, err)
			}
			contacts := rec.ContactNumbers
			if contacts == nil {
				contacts = []string{}
			}
			batch.Queue(upsertCaseQuery,
				orgID, rec.CaseNo, rec.LoanType, rec.CustomerName, rec.EmiAmount,
				rec.DueEmiAmount, rec.DueEmi, rec.Area, contacts, details,
			)
		}

		results := t.tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return total, fmt.Errorf("upsert case %s: %w", records[i].CaseNo, err)
			}
			total += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return total, fmt.Errorf("upsert cases: %w", err)
		}
	}
	return total, nil
}

const expireMissingQuery = `
	UPDATE cases
	SET due_emi_amount = NULL, due_emi = NULL, expired = true, updated_at = now()
	WHERE organization_id = $1
		AND NOT (case_no = ANY($2))
		AND (expired = false OR due_emi_amount IS NOT NULL OR due_emi IS NOT NULL)`

func (t *replaceTx) ExpireMissingCases(ctx context.Context, orgID uuid.UUID, present []string) (int64, error) {
	if present == nil {
		present = []string{}
	}
	tag, err := t.tx.Exec(ctx, expireMissingQuery, orgID, present)
	if err != nil {
		return 0, fmt.Errorf("expire missing cases: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *replaceTx) PurgeFollowUps(ctx context.Context, orgID uuid.UUID, before time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM follow_ups WHERE organization_id = $1 AND commit < $2`, orgID, before)
	if err != nil {
		return 0, fmt.Errorf("purge follow-ups: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *replaceTx) PurgePayments(ctx context.Context, orgID uuid.UUID) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE organization_id = $1`, orgID)
	if err != nil {
		return 0, fmt.Errorf("purge payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MergeCoApplicants upserts co-applicants into the cases they name, one
// locked read-modify-write per case inside a single transaction. Case
// numbers with no live case are returned as unmatched.
func (r *Repo) MergeCoApplicants(ctx context.Context, orgID uuid.UUID, records []ingest.CoApplicantRecord) (int64, []string, error) {
	byCase := make(map[string][]ingest.CoApplicantRecord)
	order := make([]string, 0)
	for _, rec := range records {
		if _, ok := byCase[rec.CaseNo]; !ok {
			order = append(order, rec.CaseNo)
		}
		byCase[rec.CaseNo] = append(byCase[rec.CaseNo], rec)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("begin co-applicant merge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var matched int64
	unmatched := make([]string, 0)
	for _, caseNo := range order {
		var raw []byte
		err := tx.QueryRow(ctx,
			`SELECT co_applicants FROM cases WHERE organization_id = $1 AND case_no = $2 FOR UPDATE`,
			orgID, caseNo,
		).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			unmatched = append(unmatched, caseNo)
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("load co-applicants %s: %w", caseNo, err)
		}

		var list []model.CoApplicant
		if err := json.Unmarshal(raw, &list); err != nil {
			return 0, nil, fmt.Errorf("decode co-applicants %s: %w", caseNo, err)
		}
		for _, rec := range byCase[caseNo] {
			list = model.UpsertCoApplicant(list, model.CoApplicant{
				Name:               rec.Name,
				OwnershipIndicator: rec.OwnershipIndicator,
				ContactNo:          rec.ContactNumbers,
			})
		}
		encoded, err := json.Marshal(list)
		if err != nil {
			return 0, nil, fmt.Errorf("encode co-applicants %s: %w", caseNo, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE cases SET co_applicants = $3, updated_at = now() WHERE organization_id = $1 AND case_no = $2`,
			orgID, caseNo, encoded,
		); err != nil {
			return 0, nil, fmt.Errorf("update co-applicants %s: %w", caseNo, err)
		}
		matched += int64(len(byCase[caseNo]))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("commit co-applicant merge: %w", err)
	}
	return matched, unmatched, nil
}
