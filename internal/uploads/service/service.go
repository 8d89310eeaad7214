// Package service accepts case uploads, validates them synchronously and
// applies them in the background or inline.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	"recovery_backend/internal/ingest"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/internal/uploads/transport"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	defaultTimeout  = 15 * time.Minute
	defaultLockTTL  = 30 * time.Minute

	opProcess = "uploads.process"

	failureMessage = "upload could not be applied"
)

// Applier writes normalized records.
type Applier interface {
	Replace(ctx context.Context, orgID uuid.UUID, records []ingest.CaseRecord) (ingest.ReplaceResult, error)
	ApplyCoApplicants(ctx context.Context, orgID uuid.UUID, records []ingest.CoApplicantRecord) (ingest.CoApplicantResult, error)
}

// SubmissionLocker rejects a second upload of an organization while one is
// in flight.
type SubmissionLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*redisx.Lock, error)
	ReleaseToken(ctx context.Context, key, token string) error
}

// Enqueuer hands a job to the background worker, which releases the
// submission lock with lockToken when done.
type Enqueuer interface {
	EnqueueCaseUpload(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error
}

// Service implements upload submission, processing and revision browsing.
type Service struct {
	repo       repository.Repository
	applier    Applier
	normalizer ingest.Normalizer
	storage    storage.StorageService
	bucket     string
	eventBus   events.Bus
	locker     SubmissionLocker
	lockTTL    time.Duration
	queue      Enqueuer
	timeout    time.Duration
	log        *logger.Logger
}

// New creates an upload service that runs uploads inline. storageSvc may be
// nil, in which case original files are not archived.
func New(repo repository.Repository, applier Applier, normalizer ingest.Normalizer, storageSvc storage.StorageService, bucket string, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		applier:    applier,
		normalizer: normalizer,
		storage:    storageSvc,
		bucket:     bucket,
		eventBus:   eventBus,
		lockTTL:    defaultLockTTL,
		timeout:    defaultTimeout,
		log:        log,
	}
}

// WithLocker enables the per-organization submission lock.
func (s *Service) WithLocker(locker SubmissionLocker, ttl time.Duration) *Service {
	s.locker = locker
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

// WithQueue makes Submit enqueue jobs instead of running them inline.
func (s *Service) WithQueue(queue Enqueuer) *Service {
	s.queue = queue
	return s
}

// WithTimeout bounds inline runs.
func (s *Service) WithTimeout(timeout time.Duration) *Service {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

func lockKey(organizationID uuid.UUID) string {
	return "upload:" + organizationID.String()
}

func requireOrganizationWide(actor visibility.Actor) error {
	if !visibility.Compose(actor).Unrestricted {
		return apperr.Forbidden("organization-wide access is required")
	}
	return nil
}

// Submit validates file and creates an upload job. With a queue the job is
// returned pending; otherwise it has already run.
func (s *Service) Submit(ctx context.Context, actor visibility.Actor, kind string, file *storage.Attachment) (transport.JobResponse, error) {
	if err := requireOrganizationWide(actor); err != nil {
		return transport.JobResponse{}, err
	}
	if file == nil {
		return transport.JobResponse{}, apperr.Validation("file is required")
	}
	if kind == "" {
		kind = repository.KindCases
	}
	if err := ingest.CheckFormat(file.FileName); err != nil {
		return transport.JobResponse{}, err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if s.storage != nil {
		if err := s.storage.Validate(storage.ContentSpreadsheet, contentType, file.Size); err != nil {
			return transport.JobResponse{}, err
		}
	}

	data, err := readAttachment(file)
	if err != nil {
		return transport.JobResponse{}, err
	}
	rows, err := ingest.ReadRows(file.FileName, bytes.NewReader(data))
	if err != nil {
		return transport.JobResponse{}, err
	}
	payload, rowCount, err := s.normalize(kind, rows)
	if err != nil {
		return transport.JobResponse{}, err
	}

	var lock *redisx.Lock
	if s.locker != nil {
		lock, err = s.locker.Acquire(ctx, lockKey(actor.OrganizationID), s.lockTTL)
		if errors.Is(err, redisx.ErrLockHeld) {
			return transport.JobResponse{}, apperr.Conflict("an upload is already running for this organization")
		}
		if err != nil {
			return transport.JobResponse{}, fmt.Errorf("acquire upload lock: %w", err)
		}
	}
	handedOff := false
	defer func() {
		if lock != nil && !handedOff {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithContext(ctx).Warn("upload lock release failed", "error", err)
			}
		}
	}()

	job := repository.Job{
		ID:             uuid.New(),
		OrganizationID: actor.OrganizationID,
		CreatedBy:      actor.EmployeeID,
		Kind:           kind,
		FileName:       path.Base(file.FileName),
		RowCount:       rowCount,
	}
	if s.storage != nil {
		folder := path.Join(actor.OrganizationID.String(), "uploads")
		key, err := s.storage.UploadFile(ctx, s.bucket, folder, job.FileName, contentType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return transport.JobResponse{}, fmt.Errorf("archive upload file: %w", err)
		}
		job.FileKey = &key
	}

	job, err = s.repo.CreateJob(ctx, job, payload)
	if err != nil {
		return transport.JobResponse{}, err
	}

	if s.queue != nil {
		token := ""
		if lock != nil {
			token = lock.Token()
		}
		if err := s.queue.EnqueueCaseUpload(ctx, job.OrganizationID, job.ID, token); err != nil {
			s.fail(context.WithoutCancel(ctx), &job, err)
			return transport.JobResponse{}, apperr.Internal(failureMessage)
		}
		handedOff = true
		return toJobResponse(job), nil
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	job, err = s.Process(runCtx, job.OrganizationID, job.ID)
	if err != nil {
		return transport.JobResponse{}, err
	}
	return toJobResponse(job), nil
}

func readAttachment(file *storage.Attachment) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// normalize validates the whole batch and encodes it as the job payload.
func (s *Service) normalize(kind string, rows []ingest.RawRow) ([]byte, int, error) {
	var (
		records any
		count   int
	)
	switch kind {
	case repository.KindCases:
		recs, err := s.normalizer.Normalize(rows)
		if err != nil {
			return nil, 0, err
		}
		records, count = recs, len(recs)
	case repository.KindCoApplicants:
		recs, err := s.normalizer.NormalizeCoApplicants(rows)
		if err != nil {
			return nil, 0, err
		}
		records, count = recs, len(recs)
	default:
		return nil, 0, apperr.Validation("type must be cases or coapplicants")
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, 0, fmt.Errorf("encode upload payload: %w", err)
	}
	return payload, count, nil
}

// Process applies a claimed job. A job that already finished is returned
// unchanged.
func (s *Service) Process(ctx context.Context, organizationID, jobID uuid.UUID) (repository.Job, error) {
	job, payload, err := s.repo.Claim(ctx, organizationID, jobID)
	if errors.Is(err, repository.ErrJobFinished) {
		return job, nil
	}
	if err != nil {
		return repository.Job{}, err
	}

	if err := s.apply(ctx, &job, payload); err != nil {
		s.fail(context.WithoutCancel(ctx), &job, err)
		return job, apperr.Internal(failureMessage)
	}

	job.Status = repository.StatusSucceeded
	if err := s.repo.Finish(context.WithoutCancel(ctx), job); err != nil {
		s.log.DatabaseError(opProcess, err)
		return job, err
	}
	return job, nil
}

// ProcessQueued runs a job picked up by the worker and releases the
// submission lock the request took.
func (s *Service) ProcessQueued(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error {
	defer func() {
		if s.locker == nil || lockToken == "" {
			return
		}
		if err := s.locker.ReleaseToken(context.WithoutCancel(ctx), lockKey(organizationID), lockToken); err != nil {
			s.log.WithContext(ctx).Warn("upload lock release failed", "job_id", jobID.String(), "error", err)
		}
	}()
	_, err := s.Process(ctx, organizationID, jobID)
	return err
}

func (s *Service) apply(ctx context.Context, job *repository.Job, payload []byte) error {
	switch job.Kind {
	case repository.KindCases:
		var records []ingest.CaseRecord
		if err := json.Unmarshal(payload, &records); err != nil {
			return fmt.Errorf("decode upload payload: %w", err)
		}
		result, err := s.applier.Replace(ctx, job.OrganizationID, records)
		if err != nil {
			return err
		}
		if job.Result, err = json.Marshal(result); err != nil {
			return fmt.Errorf("encode upload result: %w", err)
		}
		job.RevisionID = &result.RevisionID
		s.eventBus.Publish(ctx, events.CasesReplaced{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: job.OrganizationID,
			RevisionID:     result.RevisionID,
			ActorID:        job.CreatedBy,
			Upserted:       result.Upserted,
			Expired:        result.Expired,
		})
	case repository.KindCoApplicants:
		var records []ingest.CoApplicantRecord
		if err := json.Unmarshal(payload, &records); err != nil {
			return fmt.Errorf("decode upload payload: %w", err)
		}
		result, err := s.applier.ApplyCoApplicants(ctx, job.OrganizationID, records)
		if err != nil {
			return err
		}
		if job.Result, err = json.Marshal(result); err != nil {
			return fmt.Errorf("encode upload result: %w", err)
		}
		s.eventBus.Publish(ctx, events.CoApplicantsMerged{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: job.OrganizationID,
			ActorID:        job.CreatedBy,
			Matched:        result.Matched,
		})
	default:
		return fmt.Errorf("unknown upload kind %q", job.Kind)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, job *repository.Job, cause error) {
	s.log.OperationFailed(opProcess, job.OrganizationID.String(), job.CreatedBy.String(), cause)
	msg := failureMessage
	job.Status = repository.StatusFailed
	job.Error = &msg
	if err := s.repo.Finish(ctx, *job); err != nil {
		s.log.DatabaseError(opProcess, err)
	}
}

// GetJob returns a job of the actor's organization. Restricted actors only
// see their own jobs.
func (s *Service) GetJob(ctx context.Context, actor visibility.Actor, jobID uuid.UUID) (transport.JobResponse, error) {
	job, err := s.repo.GetJob(ctx, actor.OrganizationID, jobID)
	if err != nil {
		return transport.JobResponse{}, err
	}
	if !visibility.Compose(actor).Unrestricted && job.CreatedBy != actor.EmployeeID {
		return transport.JobResponse{}, apperr.NotFound("upload job not found")
	}
	return toJobResponse(job), nil
}

func pageBounds(req transport.PageRequest) (int, int) {
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// ListRevisions lists applied revision batches, newest first.
func (s *Service) ListRevisions(ctx context.Context, actor visibility.Actor, req transport.PageRequest) (httpkit.PageResponse[transport.RevisionResponse], error) {
	if err := requireOrganizationWide(actor); err != nil {
		return httpkit.PageResponse[transport.RevisionResponse]{}, err
	}
	page, pageSize := pageBounds(req)
	revisions, total, err := s.repo.ListRevisions(ctx, actor.OrganizationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return httpkit.PageResponse[transport.RevisionResponse]{}, err
	}

	items := make([]transport.RevisionResponse, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, transport.RevisionResponse{
			RevisionID:    rev.RevisionID,
			JobID:         rev.JobID.String(),
			FileName:      rev.FileName,
			CreatedBy:     rev.CreatedBy.String(),
			CreatedByName: rev.CreatedByName,
			Result:        rev.Result,
			AppliedAt:     rev.AppliedAt,
		})
	}
	return httpkit.PageResponse[transport.RevisionResponse]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// RevisionCases lists the visible cases archived in one revision batch.
func (s *Service) RevisionCases(ctx context.Context, actor visibility.Actor, revisionID string, req transport.PageRequest) (httpkit.PageResponse[transport.RevisionCaseResponse], error) {
	page, pageSize := pageBounds(req)
	cases, total, err := s.repo.RevisionCases(ctx, repository.RevisionCaseParams{
		Scope:      visibility.Compose(actor),
		RevisionID: revisionID,
		Search:     req.Search,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return httpkit.PageResponse[transport.RevisionCaseResponse]{}, err
	}

	items := make([]transport.RevisionCaseResponse, 0, len(cases))
	for _, c := range cases {
		item := transport.RevisionCaseResponse{
			CaseNo:       c.CaseNo,
			LoanType:     c.LoanType,
			CustomerName: c.CustomerName,
			EmiAmount:    c.EmiAmount,
			DueEmi:       c.DueEmi,
			Area:         c.Area,
			Expired:      c.Expired,
			ContactNo:    c.ContactNo,
			Details:      c.Details,
			ArchivedAt:   c.ArchivedAt,
		}
		if c.DueEmiAmount.Valid {
			due := c.DueEmiAmount.Decimal
			item.DueEmiAmount = &due
		}
		if c.AssignedTo != nil {
			id := c.AssignedTo.String()
			item.AssignedTo = &id
		}
		items = append(items, item)
	}
	return httpkit.PageResponse[transport.RevisionCaseResponse]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func toJobResponse(job repository.Job) transport.JobResponse {
	return transport.JobResponse{
		ID:         job.ID.String(),
		Kind:       job.Kind,
		Status:     job.Status,
		FileName:   job.FileName,
		RowCount:   job.RowCount,
		RevisionID: job.RevisionID,
		Result:     job.Result,
		Error:      job.Error,
		CreatedBy:  job.CreatedBy.String(),
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}
