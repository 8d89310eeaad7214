package ingest

import (
	"context"
	"fmt"
	"time"

	"recovery_backend/internal/stage"
	"recovery_backend/platform/logger"

	"github.com/google/uuid"
)

// ReplaceTx is the set of writes one bulk replace performs. Every method runs
// inside the same database transaction.
type ReplaceTx interface {
	ArchiveCases(ctx context.Context, orgID uuid.UUID, revisionID string) (int64, error)
	ArchiveFollowUps(ctx context.Context, orgID uuid.UUID, revisionID string, before time.Time) (int64, error)
	ArchivePayments(ctx context.Context, orgID uuid.UUID, revisionID string) (int64, error)
	UpsertCases(ctx context.Context, orgID uuid.UUID, records []CaseRecord) (int64, error)
	ExpireMissingCases(ctx context.Context, orgID uuid.UUID, present []string) (int64, error)
	PurgeFollowUps(ctx context.Context, orgID uuid.UUID, before time.Time) (int64, error)
	PurgePayments(ctx context.Context, orgID uuid.UUID) (int64, error)
}

// ReplaceStore runs fn in a transaction serialized per organization. The
// transaction commits only if fn returns nil.
type ReplaceStore interface {
	WithOrganizationLock(ctx context.Context, orgID uuid.UUID, fn func(tx ReplaceTx) error) error
}

// CoApplicantStore merges co-applicant rows into existing cases.
type CoApplicantStore interface {
	MergeCoApplicants(ctx context.Context, orgID uuid.UUID, records []CoApplicantRecord) (matched int64, unmatched []string, err error)
}

// ArchiveCounts are the rows copied into one revision batch.
type ArchiveCounts struct {
	Cases     int64 `json:"cases"`
	FollowUps int64 `json:"followUps"`
	Payments  int64 `json:"payments"`
}

// ReplaceResult summarizes one bulk replace.
type ReplaceResult struct {
	RevisionID      string        `json:"revisionId"`
	Archived        ArchiveCounts `json:"archived"`
	Upserted        int64         `json:"upserted"`
	Expired         int64         `json:"expired"`
	PurgedFollowUps int64         `json:"purgedFollowUps"`
	PurgedPayments  int64         `json:"purgedPayments"`
}

// CoApplicantResult summarizes a co-applicant upload.
type CoApplicantResult struct {
	Matched   int64    `json:"matched"`
	Unmatched []string `json:"unmatched"`
}

// NewRevisionID returns a sortable id: UTC timestamp plus a random suffix.
func NewRevisionID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Engine archives the live state of an organization and replaces it with an
// upload.
type Engine struct {
	store    ReplaceStore
	coStore  CoApplicantStore
	log      *logger.Logger
	location *time.Location
	now      func() time.Time
}

// NewEngine creates an Engine. loc decides where "today" ends.
func NewEngine(store ReplaceStore, coStore CoApplicantStore, loc *time.Location, log *logger.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, coStore: coStore, log: log, location: loc, now: time.Now}
}

// WithClock overrides the engine clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

const opReplace = "cases.replace"

// Replace snapshots the organization into a new revision batch, then upserts
// records, expires cases missing from them and purges settled follow-ups and
// all payments. Either every step applies or none does.
func (e *Engine) Replace(ctx context.Context, orgID uuid.UUID, records []CaseRecord) (ReplaceResult, error) {
	now := e.now()
	_, endOfToday := stage.DayBounds(now, e.location)
	cutoff := endOfToday.Add(time.Nanosecond)

	present := make([]string, 0, len(records))
	for _, r := range records {
		present = append(present, r.CaseNo)
	}

	var result ReplaceResult
	err := e.store.WithOrganizationLock(ctx, orgID, func(tx ReplaceTx) error {
		result = ReplaceResult{RevisionID: NewRevisionID(now)}
		org := orgID.String()

		steps := []struct {
			name string
			run  func() (int64, error)
			dest *int64
		}{
			{"archive_cases", func() (int64, error) { return tx.ArchiveCases(ctx, orgID, result.RevisionID) }, &result.Archived.Cases},
			{"archive_follow_ups", func() (int64, error) { return tx.ArchiveFollowUps(ctx, orgID, result.RevisionID, cutoff) }, &result.Archived.FollowUps},
			{"archive_payments", func() (int64, error) { return tx.ArchivePayments(ctx, orgID, result.RevisionID) }, &result.Archived.Payments},
			{"upsert_cases", func() (int64, error) { return tx.UpsertCases(ctx, orgID, records) }, &result.Upserted},
			{"expire_missing", func() (int64, error) { return tx.ExpireMissingCases(ctx, orgID, present) }, &result.Expired},
			{"purge_follow_ups", func() (int64, error) { return tx.PurgeFollowUps(ctx, orgID, cutoff) }, &result.PurgedFollowUps},
			{"purge_payments", func() (int64, error) { return tx.PurgePayments(ctx, orgID) }, &result.PurgedPayments},
		}

		for _, step := range steps {
			n, err := step.run()
			if err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			*step.dest = n
			e.log.BatchStep(opReplace, org, step.name, n)
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}

	e.log.Info("cases replaced",
		"organization_id", orgID.String(),
		"revision_id", result.RevisionID,
		"upserted", result.Upserted,
		"expired", result.Expired,
	)
	return result, nil
}

// ApplyCoApplicants merges a co-applicant upload. It bypasses revisioning.
func (e *Engine) ApplyCoApplicants(ctx context.Context, orgID uuid.UUID, records []CoApplicantRecord) (CoApplicantResult, error) {
	matched, unmatched, err := e.coStore.MergeCoApplicants(ctx, orgID, records)
	if err != nil {
		return CoApplicantResult{}, fmt.Errorf("merge co-applicants: %w", err)
	}
	if unmatched == nil {
		unmatched = []string{}
	}
	e.log.Info("co-applicants merged", "organization_id", orgID.String(), "matched", matched, "unmatched", len(unmatched))
	return CoApplicantResult{Matched: matched, Unmatched: unmatched}, nil
}
