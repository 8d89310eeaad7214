package service

import (
	"context"
	"path"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	"recovery_backend/internal/followups/repository"
	"recovery_backend/internal/followups/transport"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/sanitize"
)

// futureTolerance absorbs clock skew between devices and the server.
const futureTolerance = 5 * time.Minute

// Service records and lists follow-ups.
type Service struct {
	repo         repository.Repository
	eventBus     events.Bus
	storage      storage.StorageService
	selfieBucket string
	loc          *time.Location
	window       time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// New creates a follow-up service. storageSvc may be nil, in which case
// selfies are rejected.
func New(repo repository.Repository, eventBus events.Bus, storageSvc storage.StorageService, selfieBucket string, loc *time.Location, window time.Duration, log *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		eventBus:     eventBus,
		storage:      storageSvc,
		selfieBucket: selfieBucket,
		loc:          loc,
		window:       window,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create records a follow-up on a live case the actor can see.
func (s *Service) Create(ctx context.Context, actor visibility.Actor, caseNo string, req transport.CreateFollowUpRequest, selfie *storage.Attachment) (transport.FollowUpResponse, error) {
	now := s.now()
	date := now
	if req.Date != nil {
		date = *req.Date
	}
	if date.After(now.Add(futureTolerance)) {
		return transport.FollowUpResponse{}, apperr.Validation("follow-up date cannot be in the future")
	}
	if req.Commit != nil {
		dayStart, _ := stage.DayBounds(date, s.loc)
		if req.Commit.Before(dayStart) {
			return transport.FollowUpResponse{}, apperr.Validation("commit date cannot be before the follow-up date")
		}
	}

	scope := visibility.Compose(actor)
	if scope.DenyAll() {
		return transport.FollowUpResponse{}, apperr.NotFound("case not found")
	}
	if err := s.repo.CaseLive(ctx, scope, caseNo); err != nil {
		return transport.FollowUpResponse{}, err
	}

	fu := repository.FollowUp{
		OrganizationID: actor.OrganizationID,
		CaseNo:         caseNo,
		VisitType:      req.VisitType,
		Date:           date.UTC(),
		Commit:         utcPtr(req.Commit),
		Attitude:       sanitize.Text(req.Attitude),
		Remarks:        sanitize.Text(req.Remarks),
		NoReply:        req.NoReply,
		CreatedBy:      actor.EmployeeID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}

	if selfie != nil {
		if s.storage == nil {
			return transport.FollowUpResponse{}, apperr.Validation("selfie uploads are not configured")
		}
		folder := path.Join(actor.OrganizationID.String(), caseNo, "follow-ups")
		key, err := storage.Store(ctx, s.storage, s.selfieBucket, folder, storage.ContentImage, selfie)
		if err != nil {
			return transport.FollowUpResponse{}, err
		}
		fu.SelfieKey = &key
		if fu.Latitude == nil && fu.Longitude == nil {
			if tag, ok := storage.ReadGeoTag(selfie); ok {
				fu.Latitude, fu.Longitude = &tag.Latitude, &tag.Longitude
			}
		}
	}

	created, err := s.repo.Create(ctx, fu)
	if err != nil {
		if fu.SelfieKey != nil {
			if delErr := s.storage.DeleteObject(context.WithoutCancel(ctx), s.selfieBucket, *fu.SelfieKey); delErr != nil {
				s.log.WithContext(ctx).Warn("orphaned selfie", "key", *fu.SelfieKey, "error", delErr)
			}
		}
		s.log.OperationFailed("follow_ups.create", actor.OrganizationID.String(), actor.EmployeeID.String(), err)
		return transport.FollowUpResponse{}, err
	}
	created.CreatedByName = &actor.Name

	s.eventBus.Publish(ctx, events.FollowUpCreated{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: created.OrganizationID,
		FollowUpID:     created.ID,
		CaseNo:         created.CaseNo,
		CreatedBy:      created.CreatedBy,
		HasCommit:      created.Commit != nil,
	})

	resp := s.toResponse(ctx, created)
	if st, err := s.repo.CaseState(ctx, created.OrganizationID, created.CaseNo); err == nil {
		resp.CommitStatus = stage.CommitStatus(st.Case, toStage(created), st.Payments, now, s.window, s.loc)
	}
	return resp, nil
}

// List returns the visible follow-ups of a case, newest first.
func (s *Service) List(ctx context.Context, actor visibility.Actor, caseNo string) (transport.FollowUpListResponse, error) {
	items, err := s.repo.ListByCase(ctx, visibility.Compose(actor), caseNo)
	if err != nil {
		return transport.FollowUpListResponse{}, err
	}
	out := transport.FollowUpListResponse{Items: make([]transport.FollowUpResponse, 0, len(items))}
	if len(items) == 0 {
		return out, nil
	}

	st, err := s.repo.CaseState(ctx, actor.OrganizationID, caseNo)
	if err != nil {
		return transport.FollowUpListResponse{}, err
	}
	now := s.now()
	for _, fu := range items {
		resp := s.toResponse(ctx, fu)
		resp.CommitStatus = stage.CommitStatus(st.Case, toStage(fu), st.Payments, now, s.window, s.loc)
		out.Items = append(out.Items, resp)
	}
	return out, nil
}

func toStage(fu repository.FollowUp) stage.FollowUp {
	return stage.FollowUp{Date: fu.Date, Commit: fu.Commit}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Service) toResponse(ctx context.Context, fu repository.FollowUp) transport.FollowUpResponse {
	resp := transport.FollowUpResponse{
		ID:            fu.ID.String(),
		CaseNo:        fu.CaseNo,
		VisitType:     fu.VisitType,
		Date:          fu.Date,
		Commit:        fu.Commit,
		Attitude:      fu.Attitude,
		Remarks:       fu.Remarks,
		NoReply:       fu.NoReply,
		CreatedBy:     fu.CreatedBy.String(),
		CreatedByName: fu.CreatedByName,
		Latitude:      fu.Latitude,
		Longitude:     fu.Longitude,
		CreatedAt:     fu.CreatedAt,
	}
	if fu.SelfieKey != nil && s.storage != nil {
		if url, err := s.storage.GenerateDownloadURL(ctx, s.selfieBucket, *fu.SelfieKey); err == nil {
			resp.SelfieURL = url.URL
		}
	}
	return resp
}
