package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	"recovery_backend/internal/ingest"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/internal/uploads/transport"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const casesCSV = "Case No,Loan Type,Due EMI Amt,EMI Amt,Area,Customer Name,Contact No\n" +
	"LN-1,Two Wheeler,\"2,400\",1200,Nashik,Asha Patil,9876543210\n" +
	"LN-2,Tractor,0,5000,Pune,Ravi More,\n"

type fakeRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]repository.Job
	payloads map[uuid.UUID][]byte
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[uuid.UUID]repository.Job{}, payloads: map[uuid.UUID][]byte{}}
}

func (f *fakeRepo) CreateJob(ctx context.Context, job repository.Job, payload []byte) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Status = repository.StatusPending
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.jobs[job.ID] = job
	f.payloads[job.ID] = payload
	return job, nil
}

func (f *fakeRepo) GetJob(ctx context.Context, organizationID, id uuid.UUID) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.OrganizationID != organizationID {
		return repository.Job{}, apperr.NotFound("upload job not found")
	}
	return job, nil
}

func (f *fakeRepo) Claim(ctx context.Context, organizationID, id uuid.UUID) (repository.Job, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.OrganizationID != organizationID {
		return repository.Job{}, nil, apperr.NotFound("upload job not found")
	}
	if job.Status != repository.StatusPending && job.Status != repository.StatusRunning {
		return job, nil, repository.ErrJobFinished
	}
	job.Status = repository.StatusRunning
	f.jobs[id] = job
	return job, f.payloads[id], nil
}

func (f *fakeRepo) Finish(ctx context.Context, job repository.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	f.payloads[job.ID] = []byte("[]")
	return nil
}

func (f *fakeRepo) ListRevisions(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]repository.Revision, int64, error) {
	var out []repository.Revision
	for _, job := range f.jobs {
		if job.OrganizationID == organizationID && job.RevisionID != nil {
			out = append(out, repository.Revision{RevisionID: *job.RevisionID, JobID: job.ID, FileName: job.FileName, CreatedBy: job.CreatedBy, Result: job.Result})
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) RevisionCases(ctx context.Context, params repository.RevisionCaseParams) ([]repository.RevisionCase, int64, error) {
	return nil, 0, nil
}

type fakeApplier struct {
	records []ingest.CaseRecord
	co      []ingest.CoApplicantRecord
	err     error
}

func (f *fakeApplier) Replace(ctx context.Context, orgID uuid.UUID, records []ingest.CaseRecord) (ingest.ReplaceResult, error) {
	if f.err != nil {
		return ingest.ReplaceResult{}, f.err
	}
	f.records = records
	return ingest.ReplaceResult{RevisionID: "20261018T101500Z-abcd1234", Upserted: int64(len(records)), Expired: 3}, nil
}

func (f *fakeApplier) ApplyCoApplicants(ctx context.Context, orgID uuid.UUID, records []ingest.CoApplicantRecord) (ingest.CoApplicantResult, error) {
	if f.err != nil {
		return ingest.CoApplicantResult{}, f.err
	}
	f.co = records
	return ingest.CoApplicantResult{Matched: int64(len(records)), Unmatched: []string{}}, nil
}

type fakeQueue struct {
	jobID uuid.UUID
	token string
	err   error
}

func (q *fakeQueue) EnqueueCaseUpload(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error {
	q.jobID, q.token = jobID, lockToken
	return q.err
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	applier *fakeApplier
	store   *storage.MemoryService
	bus     *events.InMemoryBus
}

func newFixture() fixture {
	f := fixture{
		repo:    newFakeRepo(),
		applier: &fakeApplier{},
		store:   storage.NewMemoryService(0),
		bus:     events.NewInMemoryBus(logger.Nop()),
	}
	normalizer := ingest.NewNormalizer(time.UTC, "IN", 100)
	f.svc = New(f.repo, f.applier, normalizer, f.store, "case-uploads", f.bus, logger.Nop())
	return f
}

func newLocker(t *testing.T) *redisx.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisx.NewLocker(client, "test:")
}

func admin(org uuid.UUID) visibility.Actor {
	return visibility.Actor{OrganizationID: org, EmployeeID: uuid.New(), Name: "Meera", SuperAdmin: true}
}

func csvFile(name, body string) *storage.Attachment {
	return &storage.Attachment{
		FileName:    name,
		ContentType: "text/csv",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestSubmitRunsInline(t *testing.T) {
	f := newFixture()
	actor := admin(uuid.New())

	var got events.CasesReplaced
	f.bus.Subscribe(events.CasesReplaced{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		got = e.(events.CasesReplaced)
		return nil
	}))

	resp, err := f.svc.Submit(context.Background(), actor, "", csvFile("march.csv", casesCSV))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.bus.Wait()

	if resp.Status != repository.StatusSucceeded || resp.RowCount != 2 || resp.Kind != repository.KindCases {
		t.Fatalf("unexpected job %+v", resp)
	}
	if resp.RevisionID == nil || *resp.RevisionID != "20261018T101500Z-abcd1234" {
		t.Fatalf("expected revision id, got %v", resp.RevisionID)
	}
	if len(f.applier.records) != 2 || f.applier.records[0].Area != "NASHIK" {
		t.Fatalf("records not applied: %+v", f.applier.records)
	}
	if !f.applier.records[0].DueEmiAmount.Equal(decimal.NewFromInt(2400)) {
		t.Fatalf("due amount lost in payload: %s", f.applier.records[0].DueEmiAmount)
	}
	if f.store.Len() != 1 {
		t.Fatalf("expected archived original file, got %d objects", f.store.Len())
	}
	if got.RevisionID != *resp.RevisionID || got.ActorID != actor.EmployeeID || got.Upserted != 2 {
		t.Fatalf("unexpected event %+v", got)
	}
	if string(f.repo.payloads[uuid.MustParse(resp.ID)]) != "[]" {
		t.Fatal("payload should be cleared once the job finished")
	}
}

func TestSubmitCoApplicants(t *testing.T) {
	f := newFixture()
	body := "Case No,Name,Ownership Indicator,Contact No\nLN-1,Sunita Patil,CO-APPLICANT,9876500000\n"

	resp, err := f.svc.Submit(context.Background(), admin(uuid.New()), repository.KindCoApplicants, csvFile("co.csv", body))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != repository.StatusSucceeded || resp.RevisionID != nil {
		t.Fatalf("unexpected job %+v", resp)
	}
	if len(f.applier.co) != 1 || f.applier.co[0].CaseNo != "LN-1" {
		t.Fatalf("co-applicants not applied: %+v", f.applier.co)
	}
}

func TestSubmitRejections(t *testing.T) {
	org := uuid.New()
	restricted := visibility.Actor{OrganizationID: org, EmployeeID: uuid.New(), Permissions: []visibility.Permission{visibility.PermViewAssigned}}

	tests := []struct {
		name  string
		actor visibility.Actor
		kind  string
		file  *storage.Attachment
		want  apperr.Kind
	}{
		{name: "restricted actor", actor: restricted, file: csvFile("a.csv", casesCSV), want: apperr.KindForbidden},
		{name: "no file", actor: admin(org), want: apperr.KindValidation},
		{name: "pdf", actor: admin(org), file: csvFile("a.pdf", casesCSV), want: apperr.KindBadRequest},
		{name: "missing column", actor: admin(org), file: csvFile("a.csv", "Case No,Loan Type\nLN-1,Car\n"), want: apperr.KindValidation},
		{name: "unknown kind", actor: admin(org), kind: "guarantors", file: csvFile("a.csv", casesCSV), want: apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Submit(context.Background(), tt.actor, tt.kind, tt.file)
			if !apperr.Is(err, tt.want) {
				t.Fatalf("expected kind %v, got %v", tt.want, err)
			}
			if len(f.repo.jobs) != 0 {
				t.Fatal("rejected upload must not create a job")
			}
		})
	}
}

func TestSubmitWhileUploadRunningConflicts(t *testing.T) {
	f := newFixture()
	locker := newLocker(t)
	f.svc.WithLocker(locker, time.Minute)
	org := uuid.New()

	held, err := locker.Acquire(context.Background(), lockKey(org), time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_, err = f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV)); err != nil {
		t.Fatalf("submit after release: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV)); err != nil {
		t.Fatalf("inline run should release the lock: %v", err)
	}
}

func TestQueuedUploadHoldsLockUntilProcessed(t *testing.T) {
	f := newFixture()
	queue := &fakeQueue{}
	f.svc.WithLocker(newLocker(t), time.Minute).WithQueue(queue)
	org := uuid.New()
	actor := admin(org)

	resp, err := f.svc.Submit(context.Background(), actor, "", csvFile("a.csv", casesCSV))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != repository.StatusPending {
		t.Fatalf("expected pending job, got %s", resp.Status)
	}
	if queue.jobID.String() != resp.ID || queue.token == "" {
		t.Fatalf("job not enqueued with lock token: %+v", queue)
	}

	if _, err := f.svc.Submit(context.Background(), actor, "", csvFile("a.csv", casesCSV)); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict while queued, got %v", err)
	}

	if err := f.svc.ProcessQueued(context.Background(), org, queue.jobID, queue.token); err != nil {
		t.Fatalf("process: %v", err)
	}
	job, err := f.svc.GetJob(context.Background(), actor, queue.jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != repository.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", job.Status)
	}

	if err := f.svc.ProcessQueued(context.Background(), org, queue.jobID, queue.token); err != nil {
		t.Fatalf("redelivery of a finished job should be a no-op: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), actor, "", csvFile("a.csv", casesCSV)); err != nil {
		t.Fatalf("lock should be released after processing: %v", err)
	}
}

func TestEnqueueFailureMarksJobFailed(t *testing.T) {
	f := newFixture()
	f.svc.WithLocker(newLocker(t), time.Minute).WithQueue(&fakeQueue{err: errors.New("redis down")})
	org := uuid.New()

	_, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	for _, job := range f.repo.jobs {
		if job.Status != repository.StatusFailed {
			t.Fatalf("expected failed job, got %s", job.Status)
		}
	}

	f.svc.WithQueue(nil)
	if _, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV)); err != nil {
		t.Fatalf("lock should be released after enqueue failure: %v", err)
	}
}

func TestApplyFailureHidesCause(t *testing.T) {
	f := newFixture()
	f.applier.err = errors.New("deadlock detected on case_revisions")

	_, err := f.svc.Submit(context.Background(), admin(uuid.New()), "", csvFile("a.csv", casesCSV))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if strings.Contains(err.Error(), "deadlock") {
		t.Fatalf("cause leaked to caller: %v", err)
	}
	for _, job := range f.repo.jobs {
		if job.Status != repository.StatusFailed || job.Error == nil || *job.Error != failureMessage {
			t.Fatalf("unexpected failed job %+v", job)
		}
	}
}

func TestGetJobHidesOthersUploadsFromRestrictedActors(t *testing.T) {
	f := newFixture()
	org := uuid.New()
	resp, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := uuid.MustParse(resp.ID)

	agent := visibility.Actor{OrganizationID: org, EmployeeID: uuid.New(), Permissions: []visibility.Permission{visibility.PermViewSelf}}
	if _, err := f.svc.GetJob(context.Background(), agent, id); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.GetJob(context.Background(), admin(uuid.New()), id); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("other organization must not see the job, got %v", err)
	}
}

func TestListRevisionsRequiresOrganizationWideAccess(t *testing.T) {
	f := newFixture()
	org := uuid.New()
	if _, err := f.svc.Submit(context.Background(), admin(org), "", csvFile("a.csv", casesCSV)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	page, err := f.svc.ListRevisions(context.Background(), admin(org), transport.PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Page != 1 || page.PageSize != defaultPageSize || page.Items[0].FileName != "a.csv" {
		t.Fatalf("unexpected page %+v", page)
	}

	agent := visibility.Actor{OrganizationID: org, EmployeeID: uuid.New(), Permissions: []visibility.Permission{visibility.PermViewArea}}
	if _, err := f.svc.ListRevisions(context.Background(), agent, transport.PageRequest{}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
