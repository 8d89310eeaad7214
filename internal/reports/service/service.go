// Package service builds the daily reports and the dashboard rollup.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	casesrepo "recovery_backend/internal/cases/repository"
	"recovery_backend/internal/reports/repository"
	"recovery_backend/internal/reports/transport"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 50
	dayLayout       = "2006-01-02"

	historyChunk   = 500
	historyWorkers = 4

	dashboardNamespace = "dashboard:"
)

// CaseReader loads cases and their histories.
type CaseReader interface {
	List(ctx context.Context, params casesrepo.ListParams) ([]casesrepo.Case, int64, error)
	Histories(ctx context.Context, organizationID uuid.UUID, caseNos []string) (map[string]casesrepo.History, error)
}

// Service implements the report endpoints.
type Service struct {
	repo   repository.Repository
	cases  CaseReader
	cache  *redisx.JSONCache
	loc    *time.Location
	window time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// New creates a report service. cache may be nil.
func New(repo repository.Repository, cases CaseReader, cache *redisx.JSONCache, loc *time.Location, window time.Duration, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, cases: cases, cache: cache, loc: loc, window: window, log: log, now: time.Now}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) dailyParams(actor visibility.Actor, req transport.DailyReportRequest) (repository.DailyParams, string, int, int, error) {
	day := s.now().In(s.loc)
	if req.Date != "" {
		parsed, err := time.ParseInLocation(dayLayout, req.Date, s.loc)
		if err != nil {
			return repository.DailyParams{}, "", 0, 0, apperr.Validation("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	from, to := stage.DayBounds(day, s.loc)

	params := repository.DailyParams{
		Scope:  visibility.Compose(actor),
		From:   from,
		To:     to,
		Mode:   req.Mode,
		Search: req.Search,
		Area:   req.Area,
	}
	if params.Mode == "" {
		params.Mode = repository.ModeCreated
	}
	if req.Export {
		return params, from.Format(dayLayout), 0, 0, nil
	}

	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	params.Limit = pageSize
	params.Offset = (page - 1) * pageSize
	return params, from.Format(dayLayout), page, pageSize, nil
}

// FollowUps returns the follow-ups of one day, filtered by when they were
// recorded or by the promised date.
func (s *Service) FollowUps(ctx context.Context, actor visibility.Actor, req transport.DailyReportRequest) (transport.DailyReport[transport.FollowUpReportItem], error) {
	params, day, page, pageSize, err := s.dailyParams(actor, req)
	if err != nil {
		return transport.DailyReport[transport.FollowUpReportItem]{}, err
	}
	rows, total, err := s.repo.DailyFollowUps(ctx, params)
	if err != nil {
		return transport.DailyReport[transport.FollowUpReportItem]{}, err
	}

	payments, err := s.paymentsFor(ctx, actor.OrganizationID, rows)
	if err != nil {
		return transport.DailyReport[transport.FollowUpReportItem]{}, err
	}

	now := s.now()
	items := make([]transport.FollowUpReportItem, 0, len(rows))
	for _, row := range rows {
		item := transport.FollowUpReportItem{
			ID:           row.ID.String(),
			CaseNo:       row.CaseNo,
			CustomerName: row.CustomerName,
			Area:         row.Area,
			VisitType:    row.VisitType,
			Date:         row.Date,
			Commit:       row.Commit,
			Attitude:     row.Attitude,
			Remarks:      row.Remarks,
			NoReply:      row.NoReply,
			AgentID:      row.CreatedBy.String(),
			AgentName:    row.AgentName,
			Latitude:     row.Latitude,
			Longitude:    row.Longitude,
		}
		item.CommitStatus = stage.CommitStatus(row.StageCase(), stage.FollowUp{Date: row.Date, Commit: row.Commit}, payments[row.CaseNo], now, s.window, s.loc)
		items = append(items, item)
	}

	return transport.DailyReport[transport.FollowUpReportItem]{Day: day, Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// paymentsFor loads the payments of every case with a promise among rows.
func (s *Service) paymentsFor(ctx context.Context, organizationID uuid.UUID, rows []repository.FollowUpRow) (map[string][]stage.Payment, error) {
	seen := make(map[string]struct{})
	caseNos := make([]string, 0)
	for _, row := range rows {
		if row.Commit == nil {
			continue
		}
		if _, ok := seen[row.CaseNo]; ok {
			continue
		}
		seen[row.CaseNo] = struct{}{}
		caseNos = append(caseNos, row.CaseNo)
	}

	out := make(map[string][]stage.Payment, len(caseNos))
	if len(caseNos) == 0 {
		return out, nil
	}
	histories, err := s.cases.Histories(ctx, organizationID, caseNos)
	if err != nil {
		return nil, err
	}
	for caseNo, h := range histories {
		out[caseNo] = h.Payments
	}
	return out, nil
}

// Payments returns the payments dated on one day.
func (s *Service) Payments(ctx context.Context, actor visibility.Actor, req transport.DailyReportRequest) (transport.DailyReport[transport.PaymentReportItem], error) {
	params, day, page, pageSize, err := s.dailyParams(actor, req)
	if err != nil {
		return transport.DailyReport[transport.PaymentReportItem]{}, err
	}
	rows, total, err := s.repo.DailyPayments(ctx, params)
	if err != nil {
		return transport.DailyReport[transport.PaymentReportItem]{}, err
	}

	items := make([]transport.PaymentReportItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, transport.PaymentReportItem{
			ID:             row.ID.String(),
			CaseNo:         row.CaseNo,
			CustomerName:   row.CustomerName,
			Area:           row.Area,
			Amount:         row.Amount,
			Date:           row.Date,
			PaymentMode:    row.PaymentMode,
			PenaltyCharges: nullPtr(row.PenaltyCharges),
			BounceCharges:  nullPtr(row.BounceCharges),
			OtherCharges:   nullPtr(row.OtherCharges),
			Reference:      row.Reference,
			AgentID:        row.CreatedBy.String(),
			AgentName:      row.AgentName,
		})
	}

	return transport.DailyReport[transport.PaymentReportItem]{Day: day, Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func nullPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func dashboardKey(organizationID uuid.UUID) string {
	return dashboardNamespace + organizationID.String()
}

// Dashboard rolls up the actor's visible cases. Results are cached per
// organization and scope until the next write to the organization.
func (s *Service) Dashboard(ctx context.Context, actor visibility.Actor) (transport.DashboardResponse, error) {
	scope := visibility.Compose(actor)
	namespace := dashboardKey(actor.OrganizationID)

	var cached transport.DashboardResponse
	found, err := s.cache.Get(ctx, namespace, scope.Fingerprint(), &cached)
	if err != nil {
		s.log.WithContext(ctx).Warn("dashboard cache read failed", "error", err)
	}
	if found {
		return cached, nil
	}

	cases, _, err := s.cases.List(ctx, casesrepo.ListParams{Scope: scope})
	if err != nil {
		return transport.DashboardResponse{}, err
	}
	histories, err := s.loadHistories(ctx, actor.OrganizationID, cases)
	if err != nil {
		return transport.DashboardResponse{}, err
	}

	resp := s.rollup(ctx, cases, histories)
	if err := s.cache.Set(ctx, namespace, scope.Fingerprint(), resp); err != nil {
		s.log.WithContext(ctx).Warn("dashboard cache write failed", "error", err)
	}
	return resp, nil
}

// loadHistories fetches histories in chunks, several at a time.
func (s *Service) loadHistories(ctx context.Context, organizationID uuid.UUID, cases []casesrepo.Case) (map[string]casesrepo.History, error) {
	out := make(map[string]casesrepo.History, len(cases))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyWorkers)
	for start := 0; start < len(cases); start += historyChunk {
		end := min(start+historyChunk, len(cases))
		caseNos := make([]string, 0, end-start)
		for _, c := range cases[start:end] {
			caseNos = append(caseNos, c.CaseNo)
		}
		g.Go(func() error {
			chunk, err := s.cases.Histories(gctx, organizationID, caseNos)
			if err != nil {
				return err
			}
			mu.Lock()
			for caseNo, h := range chunk {
				out[caseNo] = h
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func newRollup() transport.Rollup {
	r := transport.Rollup{
		DueAmount:       decimal.Zero,
		PaidAmount:      decimal.Zero,
		BrokenPTPAmount: decimal.Zero,
		Stages:          make(map[stage.Stage]int, len(stage.All)),
	}
	for _, st := range stage.All {
		r.Stages[st] = 0
	}
	return r
}

func addCase(r *transport.Rollup, sc stage.Case, h casesrepo.History, signals stage.Signals, st stage.Stage) {
	r.Cases++
	r.Stages[st]++
	if !sc.Retired() {
		r.LiveCases++
		r.DueAmount = r.DueAmount.Add(sc.Due())
		if sc.DueEmi != nil {
			r.DueEmi += *sc.DueEmi
		} else {
			r.DueEmi += stage.DueEmi(sc.Due(), sc.EmiAmount)
		}
	}
	for _, p := range h.Payments {
		r.PaidAmount = r.PaidAmount.Add(p.Amount)
		r.Payments++
	}
	if signals.BrokenPromise() {
		r.BrokenPTPCount++
		r.BrokenPTPAmount = r.BrokenPTPAmount.Add(sc.Due())
	}
}

func (s *Service) rollup(ctx context.Context, cases []casesrepo.Case, histories map[string]casesrepo.History) transport.DashboardResponse {
	now := s.now()
	org := newRollup()
	branches := make(map[string]*transport.Rollup)

	for _, c := range cases {
		sc := c.StageCase()
		h := histories[c.CaseNo]
		signals := stage.Collect(sc, h.FollowUps, h.Payments, now)
		st := stage.Classify(sc, signals)
		if st == stage.Unknown {
			s.log.WithContext(ctx).Warn("case_stage_unknown",
				"organization_id", c.OrganizationID.String(),
				"case_no", c.CaseNo,
				"due_emi_amount", sc.Due().String(),
			)
		}

		addCase(&org, sc, h, signals, st)
		b, ok := branches[c.Area]
		if !ok {
			r := newRollup()
			b = &r
			branches[c.Area] = b
		}
		addCase(b, sc, h, signals, st)
	}

	resp := transport.DashboardResponse{
		Organization: org,
		Branches:     make([]transport.BranchRollup, 0, len(branches)),
		GeneratedAt:  now.UTC(),
	}
	for area, r := range branches {
		resp.Branches = append(resp.Branches, transport.BranchRollup{Area: area, Rollup: *r})
	}
	sort.Slice(resp.Branches, func(i, j int) bool { return resp.Branches[i].Area < resp.Branches[j].Area })
	return resp
}
