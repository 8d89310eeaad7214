package service

import (
	"context"
	"strings"
	"time"

	"recovery_backend/internal/cases/model"
	"recovery_backend/internal/cases/repository"
	"recovery_backend/internal/cases/transport"
	"recovery_backend/internal/events"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/phone"
	"recovery_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultPageSize = 50

// Service implements case reads and agent edits.
type Service struct {
	repo        repository.Repository
	eventBus    events.Bus
	phoneRegion string
	log         *logger.Logger
	now         func() time.Time
}

// New creates a new cases service.
func New(repo repository.Repository, eventBus events.Bus, phoneRegion string, log *logger.Logger) *Service {
	return &Service{repo: repo, eventBus: eventBus, phoneRegion: phoneRegion, log: log, now: time.Now}
}

// WithClock replaces the clock used for classification.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Classified is a case together with its derived signals and stage.
type Classified struct {
	Case    repository.Case
	History repository.History
	Signals stage.Signals
	Stage   stage.Stage
}

func (s *Service) classify(ctx context.Context, c repository.Case, h repository.History, now time.Time) Classified {
	sc := c.StageCase()
	signals := stage.Collect(sc, h.FollowUps, h.Payments, now)
	st := stage.Classify(sc, signals)
	if st == stage.Unknown {
		s.log.WithContext(ctx).Warn("case_stage_unknown",
			"organization_id", c.OrganizationID.String(),
			"case_no", c.CaseNo,
			"due_emi_amount", sc.Due().String(),
			"payments", signals.PaymentCount,
			"future_follow_ups", len(signals.FutureFollowUps),
		)
	}
	return Classified{Case: c, History: h, Signals: signals, Stage: st}
}

// List returns the visible cases matching req. A stage filter classifies
// every match before paginating.
func (s *Service) List(ctx context.Context, actor visibility.Actor, req transport.ListCasesRequest) (httpkit.PageResponse[transport.CaseSummary], error) {
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	params := repository.ListParams{
		Scope:   visibility.Compose(actor),
		Search:  strings.TrimSpace(req.Search),
		Area:    strings.TrimSpace(req.Area),
		Expired: req.Expired,
	}
	switch strings.ToLower(strings.TrimSpace(req.AssignedTo)) {
	case "":
	case transport.AssignedNone:
		params.Unassigned = true
	case transport.AssignedMe:
		id := actor.EmployeeID
		params.AssignedTo = &id
	default:
		id, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return httpkit.PageResponse[transport.CaseSummary]{}, apperr.Validation("assigned must be an employee id, me or none")
		}
		params.AssignedTo = &id
	}
	if req.Stage == "" {
		params.Limit = pageSize
		params.Offset = (page - 1) * pageSize
	}

	cases, total, err := s.repo.List(ctx, params)
	if err != nil {
		return httpkit.PageResponse[transport.CaseSummary]{}, err
	}
	classified, err := s.classifyAll(ctx, actor.OrganizationID, cases)
	if err != nil {
		return httpkit.PageResponse[transport.CaseSummary]{}, err
	}

	if req.Stage != "" {
		filtered := classified[:0]
		for _, c := range classified {
			if string(c.Stage) == req.Stage {
				filtered = append(filtered, c)
			}
		}
		total = int64(len(filtered))
		classified = paginate(filtered, page, pageSize)
	}

	items := make([]transport.CaseSummary, 0, len(classified))
	for _, c := range classified {
		items = append(items, toSummary(c))
	}
	return httpkit.PageResponse[transport.CaseSummary]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return items[:0]
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *Service) classifyAll(ctx context.Context, organizationID uuid.UUID, cases []repository.Case) ([]Classified, error) {
	caseNos := make([]string, 0, len(cases))
	for _, c := range cases {
		caseNos = append(caseNos, c.CaseNo)
	}
	histories, err := s.repo.Histories(ctx, organizationID, caseNos)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Classified, 0, len(cases))
	for _, c := range cases {
		out = append(out, s.classify(ctx, c, histories[c.CaseNo], now))
	}
	return out, nil
}

// Get returns one visible case with its stage.
func (s *Service) Get(ctx context.Context, actor visibility.Actor, caseNo string) (transport.CaseDetail, error) {
	c, err := s.Classify(ctx, visibility.Compose(actor), caseNo)
	if err != nil {
		return transport.CaseDetail{}, err
	}
	return toDetail(c), nil
}

// Classify loads and classifies one case within scope.
func (s *Service) Classify(ctx context.Context, scope visibility.Scope, caseNo string) (Classified, error) {
	c, err := s.repo.Get(ctx, scope, caseNo)
	if err != nil {
		return Classified{}, err
	}
	histories, err := s.repo.Histories(ctx, c.OrganizationID, []string{c.CaseNo})
	if err != nil {
		return Classified{}, err
	}
	return s.classify(ctx, c, histories[c.CaseNo], s.now()), nil
}

// Assign sets or clears the case assignee.
func (s *Service) Assign(ctx context.Context, actor visibility.Actor, caseNo string, req transport.AssignRequest) (transport.CaseDetail, error) {
	var assignee *uuid.UUID
	if req.EmployeeID != nil && *req.EmployeeID != "" {
		id, err := uuid.Parse(*req.EmployeeID)
		if err != nil {
			return transport.CaseDetail{}, apperr.Validation("employeeId must be a uuid")
		}
		exists, err := s.repo.EmployeeExists(ctx, actor.OrganizationID, id)
		if err != nil {
			return transport.CaseDetail{}, err
		}
		if !exists {
			return transport.CaseDetail{}, apperr.Validation("employee not found in organization")
		}
		assignee = &id
	}

	return s.mutate(ctx, actor, caseNo, "assignedTo", func(c *repository.Case) error {
		c.AssignedTo = assignee
		return nil
	})
}

// AddRemark appends a remark by the actor.
func (s *Service) AddRemark(ctx context.Context, actor visibility.Actor, caseNo string, req transport.AddRemarkRequest) (transport.CaseDetail, error) {
	text := sanitize.Text(req.Text)
	if text == "" {
		return transport.CaseDetail{}, apperr.Validation("remark text is required")
	}
	remark := model.Remark{ID: uuid.New(), Text: text, CreatedBy: actor.EmployeeID, CreatedAt: s.now().UTC()}

	return s.mutate(ctx, actor, caseNo, "remarks", func(c *repository.Case) error {
		c.Remarks = append(c.Remarks, remark)
		return nil
	})
}

// DeleteRemark removes a remark. Only its author or an organization-wide
// viewer may remove it.
func (s *Service) DeleteRemark(ctx context.Context, actor visibility.Actor, caseNo string, remarkID uuid.UUID) (transport.CaseDetail, error) {
	return s.mutate(ctx, actor, caseNo, "remarks", func(c *repository.Case) error {
		for _, r := range c.Remarks {
			if r.ID == remarkID && r.CreatedBy != actor.EmployeeID && !visibility.Compose(actor).Unrestricted {
				return apperr.Forbidden("only the author can remove this remark")
			}
		}
		remaining, ok := model.RemoveRemark(c.Remarks, remarkID)
		if !ok {
			return apperr.NotFound("remark not found")
		}
		c.Remarks = remaining
		return nil
	})
}

// AddContacts merges phone numbers into the case or one co-applicant.
func (s *Service) AddContacts(ctx context.Context, actor visibility.Actor, caseNo string, req transport.AddContactsRequest) (transport.CaseDetail, error) {
	numbers := phone.NormalizeList(req.Numbers, s.phoneRegion)
	if len(numbers) == 0 {
		return transport.CaseDetail{}, apperr.Validation("at least one contact number is required")
	}

	return s.mutate(ctx, actor, caseNo, "contactNo", func(c *repository.Case) error {
		if name := strings.TrimSpace(req.CoApplicantName); name != "" {
			i := model.FindCoApplicant(c.CoApplicants, name)
			if i < 0 {
				return apperr.NotFound("co-applicant not found")
			}
			c.CoApplicants[i].ContactNo = model.MergeContacts(c.CoApplicants[i].ContactNo, numbers)
			return nil
		}
		c.ContactNo = model.MergeContacts(c.ContactNo, numbers)
		return nil
	})
}

// SetLocation records a geotag on the case or one co-applicant.
func (s *Service) SetLocation(ctx context.Context, actor visibility.Actor, caseNo string, req transport.SetLocationRequest) (transport.CaseDetail, error) {
	loc := &model.Location{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		RecordedBy: actor.EmployeeID,
		RecordedAt: s.now().UTC(),
	}

	return s.mutate(ctx, actor, caseNo, "location", func(c *repository.Case) error {
		if name := strings.TrimSpace(req.CoApplicantName); name != "" {
			i := model.FindCoApplicant(c.CoApplicants, name)
			if i < 0 {
				return apperr.NotFound("co-applicant not found")
			}
			c.CoApplicants[i].Location = loc
			return nil
		}
		c.Location = loc
		return nil
	})
}

// SetArea moves a case to another branch.
func (s *Service) SetArea(ctx context.Context, actor visibility.Actor, caseNo string, req transport.SetAreaRequest) (transport.CaseDetail, error) {
	area := strings.ToUpper(sanitize.Text(req.Area))
	if area == "" {
		return transport.CaseDetail{}, apperr.Validation("area is required")
	}
	return s.mutate(ctx, actor, caseNo, "area", func(c *repository.Case) error {
		c.Area = area
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, actor visibility.Actor, caseNo, field string, fn func(*repository.Case) error) (transport.CaseDetail, error) {
	updated, err := s.repo.Mutate(ctx, visibility.Compose(actor), caseNo, fn)
	if err != nil {
		return transport.CaseDetail{}, err
	}

	s.eventBus.Publish(ctx, events.CaseUpdated{
		BaseEvent:      events.NewBaseEvent(),
		OrganizationID: actor.OrganizationID,
		CaseNo:         updated.CaseNo,
		ActorID:        actor.EmployeeID,
		Field:          field,
	})

	histories, err := s.repo.Histories(ctx, updated.OrganizationID, []string{updated.CaseNo})
	if err != nil {
		return transport.CaseDetail{}, err
	}
	return toDetail(s.classify(ctx, updated, histories[updated.CaseNo], s.now())), nil
}

func toSummary(c Classified) transport.CaseSummary {
	var due *decimal.Decimal
	if c.Case.DueEmiAmount.Valid {
		d := c.Case.DueEmiAmount.Decimal
		due = &d
	}
	var assignedTo *string
	if c.Case.AssignedTo != nil {
		id := c.Case.AssignedTo.String()
		assignedTo = &id
	}
	contacts := c.Case.ContactNo
	if contacts == nil {
		contacts = []string{}
	}
	return transport.CaseSummary{
		CaseNo:            c.Case.CaseNo,
		LoanType:          c.Case.LoanType,
		CustomerName:      c.Case.CustomerName,
		EmiAmount:         c.Case.EmiAmount,
		DueEmiAmount:      due,
		DueEmi:            c.Case.DueEmi,
		Area:              c.Case.Area,
		AssignedTo:        assignedTo,
		AssigneeName:      c.Case.AssigneeName,
		Expired:           c.Case.Expired,
		Stage:             string(c.Stage),
		Label:             stage.ListLabel(c.Case.StageCase(), c.Signals),
		IsBrokenPTP:       c.Signals.BrokenPromise(),
		LastPTPDate:       c.Signals.LastPTPDate,
		LatestPaymentDate: c.Signals.LatestPaymentDate,
		ContactNo:         contacts,
		UpdatedAt:         c.Case.UpdatedAt,
	}
}

func toDetail(c Classified) transport.CaseDetail {
	coApplicants := c.Case.CoApplicants
	if coApplicants == nil {
		coApplicants = []model.CoApplicant{}
	}
	remarks := c.Case.Remarks
	if remarks == nil {
		remarks = []model.Remark{}
	}
	return transport.CaseDetail{
		CaseSummary:   toSummary(c),
		CoApplicants:  coApplicants,
		Remarks:       remarks,
		Location:      c.Case.Location,
		Details:       c.Case.Details,
		FollowUpCount: len(c.History.FollowUps),
		OpenPromises:  len(c.Signals.FutureFollowUps),
		PaymentCount:  c.Signals.PaymentCount,
		CreatedAt:     c.Case.CreatedAt,
	}
}
