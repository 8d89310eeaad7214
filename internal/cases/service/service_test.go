package service

import (
	"context"
	"testing"
	"time"

	"recovery_backend/internal/cases/model"
	"recovery_backend/internal/cases/repository"
	"recovery_backend/internal/cases/transport"
	"recovery_backend/internal/events"
	"recovery_backend/internal/stage"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	cases     map[string]repository.Case
	histories map[string]repository.History
	employees map[uuid.UUID]bool
	lastList  repository.ListParams
}

func (f *fakeRepo) visible(scope visibility.Scope, c repository.Case) bool {
	return scope.Allows(visibility.Record{
		OrganizationID: c.OrganizationID,
		AssignedTo:     c.AssignedTo,
		Area:           c.Area,
		Retired:        c.Expired,
	})
}

func (f *fakeRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Case, int64, error) {
	f.lastList = params
	var out []repository.Case
	for _, c := range f.cases {
		if f.visible(params.Scope, c) {
			out = append(out, c)
		}
	}
	total := int64(len(out))
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, total, nil
}

func (f *fakeRepo) Get(ctx context.Context, scope visibility.Scope, caseNo string) (repository.Case, error) {
	c, ok := f.cases[caseNo]
	if !ok || !f.visible(scope, c) {
		return repository.Case{}, apperr.NotFound("case not found")
	}
	return c, nil
}

func (f *fakeRepo) Histories(ctx context.Context, organizationID uuid.UUID, caseNos []string) (map[string]repository.History, error) {
	out := make(map[string]repository.History)
	for _, no := range caseNos {
		out[no] = f.histories[no]
	}
	return out, nil
}

func (f *fakeRepo) Mutate(ctx context.Context, scope visibility.Scope, caseNo string, fn func(*repository.Case) error) (repository.Case, error) {
	c, err := f.Get(ctx, scope, caseNo)
	if err != nil {
		return repository.Case{}, err
	}
	c.CoApplicants = append([]model.CoApplicant(nil), c.CoApplicants...)
	c.Remarks = append([]model.Remark(nil), c.Remarks...)
	if err := fn(&c); err != nil {
		return repository.Case{}, err
	}
	f.cases[caseNo] = c
	return c, nil
}

func (f *fakeRepo) EmployeeExists(ctx context.Context, organizationID, employeeID uuid.UUID) (bool, error) {
	return f.employees[employeeID], nil
}

var (
	testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	orgID   = uuid.New()
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newCase(no, area string, due int64) repository.Case {
	d := stage.DueEmi(dec(due), dec(1000))
	return repository.Case{
		ID: uuid.New(), OrganizationID: orgID, CaseNo: no, LoanType: "PL", Area: area,
		EmiAmount: dec(1000), DueEmiAmount: decimal.NewNullDecimal(dec(due)), DueEmi: &d,
	}
}

func newService(repo *fakeRepo) *Service {
	return New(repo, events.NewInMemoryBus(logger.Nop()), "IN", logger.Nop()).WithClock(func() time.Time { return testNow })
}

func admin() visibility.Actor {
	return visibility.Actor{OrganizationID: orgID, EmployeeID: uuid.New(), SuperAdmin: true}
}

func TestListFiltersByStage(t *testing.T) {
	tomorrow := testNow.Add(24 * time.Hour)
	repo := &fakeRepo{
		cases: map[string]repository.Case{
			"LN1": newCase("LN1", "PUNE", 0),
			"LN2": newCase("LN2", "PUNE", 2500),
			"LN3": newCase("LN3", "PUNE", 2500),
		},
		histories: map[string]repository.History{
			"LN2": {FollowUps: []stage.FollowUp{{Date: testNow, Commit: &tomorrow}}},
		},
	}
	svc := newService(repo)

	resp, err := svc.List(context.Background(), admin(), transport.ListCasesRequest{Stage: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.Limit != 0 {
		t.Fatalf("stage filter must load every match, got limit %d", repo.lastList.Limit)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].CaseNo != "LN2" {
		t.Fatalf("unexpected page %+v", resp)
	}
	if resp.Items[0].Label != stage.LabelDuePayment {
		t.Fatalf("unexpected label %q", resp.Items[0].Label)
	}
}

func TestBrokenPromiseNeedsALapsedPromise(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	repo := &fakeRepo{
		cases: map[string]repository.Case{
			"LN1": newCase("LN1", "PUNE", 2500),
			"LN2": newCase("LN2", "PUNE", 2500),
		},
		histories: map[string]repository.History{
			"LN2": {FollowUps: []stage.FollowUp{{Date: testNow.Add(-72 * time.Hour), Commit: &yesterday}}},
		},
	}
	svc := newService(repo)

	resp, err := svc.List(context.Background(), admin(), transport.ListCasesRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	broken := make(map[string]bool)
	for _, item := range resp.Items {
		broken[item.CaseNo] = item.IsBrokenPTP
	}
	if broken["LN1"] || !broken["LN2"] {
		t.Fatalf("unexpected broken flags %v", broken)
	}
}

func TestListPaginatesInRepository(t *testing.T) {
	repo := &fakeRepo{cases: map[string]repository.Case{"LN1": newCase("LN1", "PUNE", 0)}}
	svc := newService(repo)

	resp, err := svc.List(context.Background(), admin(), transport.ListCasesRequest{Page: 3, PageSize: 20, AssignedTo: "none"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastList.Limit != 20 || repo.lastList.Offset != 40 || !repo.lastList.Unassigned {
		t.Fatalf("unexpected params %+v", repo.lastList)
	}
	if resp.Page != 3 || resp.PageSize != 20 {
		t.Fatalf("unexpected page %+v", resp)
	}
}

func TestListRejectsBadAssignee(t *testing.T) {
	svc := newService(&fakeRepo{cases: map[string]repository.Case{}})
	_, err := svc.List(context.Background(), admin(), transport.ListCasesRequest{AssignedTo: "someone"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetHidesInvisibleCase(t *testing.T) {
	repo := &fakeRepo{cases: map[string]repository.Case{"LN1": newCase("LN1", "MUMBAI", 2500)}}
	svc := newService(repo)
	actor := visibility.Actor{OrganizationID: orgID, EmployeeID: uuid.New(), Branches: []string{"pune"}, Permissions: []visibility.Permission{visibility.PermViewArea}}

	if _, err := svc.Get(context.Background(), actor, "LN1"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	actor.Branches = []string{"mumbai"}
	detail, err := svc.Get(context.Background(), actor, "LN1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Stage != string(stage.Expired) || *detail.DueEmi != 3 {
		t.Fatalf("unexpected detail %+v", detail.CaseSummary)
	}
}

func TestAssignRequiresEmployeeOfOrganization(t *testing.T) {
	emp := uuid.New()
	repo := &fakeRepo{
		cases:     map[string]repository.Case{"LN1": newCase("LN1", "PUNE", 2500)},
		employees: map[uuid.UUID]bool{emp: true},
	}
	svc := newService(repo)

	stranger := uuid.NewString()
	if _, err := svc.Assign(context.Background(), admin(), "LN1", transport.AssignRequest{EmployeeID: &stranger}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	id := emp.String()
	detail, err := svc.Assign(context.Background(), admin(), "LN1", transport.AssignRequest{EmployeeID: &id})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if detail.AssignedTo == nil || *detail.AssignedTo != id {
		t.Fatalf("assignee not set: %+v", detail.AssignedTo)
	}

	detail, err = svc.Assign(context.Background(), admin(), "LN1", transport.AssignRequest{})
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if detail.AssignedTo != nil {
		t.Fatal("expected assignee cleared")
	}
}

func TestRemarksAddAndDelete(t *testing.T) {
	repo := &fakeRepo{cases: map[string]repository.Case{"LN1": newCase("LN1", "PUNE", 2500)}}
	svc := newService(repo)
	author := visibility.Actor{OrganizationID: orgID, EmployeeID: uuid.New(), Branches: []string{"PUNE"}, Permissions: []visibility.Permission{visibility.PermViewArea}}
	other := visibility.Actor{OrganizationID: orgID, EmployeeID: uuid.New(), Branches: []string{"PUNE"}, Permissions: []visibility.Permission{visibility.PermViewArea}}

	detail, err := svc.AddRemark(context.Background(), author, "LN1", transport.AddRemarkRequest{Text: "  <b>customer</b>   travelling "})
	if err != nil {
		t.Fatalf("add remark: %v", err)
	}
	if len(detail.Remarks) != 1 || detail.Remarks[0].Text != "customer travelling" {
		t.Fatalf("unexpected remarks %+v", detail.Remarks)
	}
	remarkID := detail.Remarks[0].ID

	if _, err := svc.DeleteRemark(context.Background(), other, "LN1", remarkID); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.DeleteRemark(context.Background(), author, "LN1", uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	detail, err = svc.DeleteRemark(context.Background(), author, "LN1", remarkID)
	if err != nil {
		t.Fatalf("delete remark: %v", err)
	}
	if len(detail.Remarks) != 0 {
		t.Fatalf("remark not removed: %+v", detail.Remarks)
	}
}

func TestAddContactsToCoApplicant(t *testing.T) {
	c := newCase("LN1", "PUNE", 2500)
	c.ContactNo = []string{"+919876543210"}
	c.CoApplicants = []model.CoApplicant{{Name: "Sita Devi", OwnershipIndicator: "CO-BORROWER", ContactNo: []string{}}}
	repo := &fakeRepo{cases: map[string]repository.Case{"LN1": c}}
	svc := newService(repo)

	detail, err := svc.AddContacts(context.Background(), admin(), "LN1", transport.AddContactsRequest{
		Numbers:         []string{"98765 43211", "9876543211"},
		CoApplicantName: "sita devi",
	})
	if err != nil {
		t.Fatalf("add contacts: %v", err)
	}
	if got := detail.CoApplicants[0].ContactNo; len(got) != 1 || got[0] != "+919876543211" {
		t.Fatalf("unexpected co-applicant contacts %v", got)
	}
	if len(detail.ContactNo) != 1 {
		t.Fatalf("case contacts must be untouched, got %v", detail.ContactNo)
	}

	_, err = svc.AddContacts(context.Background(), admin(), "LN1", transport.AddContactsRequest{Numbers: []string{"1"}, CoApplicantName: "nobody"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetLocationAndArea(t *testing.T) {
	repo := &fakeRepo{cases: map[string]repository.Case{"LN1": newCase("LN1", "PUNE", 2500)}}
	svc := newService(repo)
	actor := admin()
	lat, lng := 18.52, 73.85

	detail, err := svc.SetLocation(context.Background(), actor, "LN1", transport.SetLocationRequest{Latitude: &lat, Longitude: &lng})
	if err != nil {
		t.Fatalf("set location: %v", err)
	}
	if detail.Location == nil || detail.Location.RecordedBy != actor.EmployeeID {
		t.Fatalf("unexpected location %+v", detail.Location)
	}

	detail, err = svc.SetArea(context.Background(), actor, "LN1", transport.SetAreaRequest{Area: " nashik "})
	if err != nil {
		t.Fatalf("set area: %v", err)
	}
	if detail.Area != "NASHIK" {
		t.Fatalf("unexpected area %q", detail.Area)
	}
}
