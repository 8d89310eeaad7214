package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/events"
	"recovery_backend/internal/ingest"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/internal/uploads/service"
	"recovery_backend/internal/uploads/transport"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const casesCSV = "Case No,Loan Type,Due EMI Amt,EMI Amt,Area\nLN-1,Car,2400,1200,Pune\n"

type memRepo struct {
	jobs map[uuid.UUID]repository.Job
}

func (m *memRepo) CreateJob(ctx context.Context, job repository.Job, payload []byte) (repository.Job, error) {
	job.Status = repository.StatusPending
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memRepo) GetJob(ctx context.Context, organizationID, id uuid.UUID) (repository.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return repository.Job{}, apperr.NotFound("upload job not found")
	}
	return job, nil
}

func (m *memRepo) Claim(ctx context.Context, organizationID, id uuid.UUID) (repository.Job, []byte, error) {
	job := m.jobs[id]
	job.Status = repository.StatusRunning
	return job, []byte(`[{"CaseNo":"LN-1","Area":"PUNE"}]`), nil
}

func (m *memRepo) Finish(ctx context.Context, job repository.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memRepo) ListRevisions(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]repository.Revision, int64, error) {
	return []repository.Revision{}, 0, nil
}

func (m *memRepo) RevisionCases(ctx context.Context, params repository.RevisionCaseParams) ([]repository.RevisionCase, int64, error) {
	if params.RevisionID != "20261018T101500Z-abcd1234" {
		return []repository.RevisionCase{}, 0, nil
	}
	return []repository.RevisionCase{{CaseNo: "LN-1", Area: "PUNE", ArchivedAt: time.Now()}}, 1, nil
}

type okApplier struct{}

func (okApplier) Replace(ctx context.Context, orgID uuid.UUID, records []ingest.CaseRecord) (ingest.ReplaceResult, error) {
	return ingest.ReplaceResult{RevisionID: "20261018T101500Z-abcd1234", Upserted: int64(len(records))}, nil
}

func (okApplier) ApplyCoApplicants(ctx context.Context, orgID uuid.UUID, records []ingest.CoApplicantRecord) (ingest.CoApplicantResult, error) {
	return ingest.CoApplicantResult{}, nil
}

type nopQueue struct{}

func (nopQueue) EnqueueCaseUpload(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error {
	return nil
}

func newRouter(t *testing.T, queued bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.New(&memRepo{jobs: map[uuid.UUID]repository.Job{}}, okApplier{},
		ingest.NewNormalizer(time.UTC, "IN", 0), nil, "case-uploads", events.NewInMemoryBus(logger.Nop()), logger.Nop())
	if queued {
		svc.WithQueue(nopQueue{})
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		resolve.Set(c, visibility.Actor{OrganizationID: uuid.New(), EmployeeID: uuid.New(), SuperAdmin: true})
	})
	New(svc, validator.New()).RegisterRoutes(r.Group(""))
	return r
}

func uploadRequest(t *testing.T, fileName, kind, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		if err := mw.WriteField("type", kind); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/cases/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSubmitInlineReturnsResult(t *testing.T) {
	r := newRouter(t, false)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "march.csv", "cases", casesCSV))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var job transport.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != repository.StatusSucceeded || job.RevisionID == nil {
		t.Fatalf("unexpected job %+v", job)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/uploads/"+job.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 polling the job, got %d", w.Code)
	}
}

func TestSubmitQueuedReturnsAccepted(t *testing.T) {
	r := newRouter(t, true)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "march.csv", "", casesCSV))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		kind     string
		body     string
		code     string
	}{
		{name: "unsupported format", fileName: "march.pdf", body: casesCSV, code: apperr.CodeUnsupportedFormat},
		{name: "bad type", fileName: "march.csv", kind: "loans", body: casesCSV},
		{name: "no file", kind: "cases"},
		{name: "missing amount", fileName: "march.csv", body: "Case No,Loan Type,Due EMI Amt,EMI Amt,Area\nLN-1,Car,,1200,Pune\n", code: apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(t, false).ServeHTTP(w, uploadRequest(t, tt.fileName, tt.kind, tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if tt.code == "" {
				return
			}
			var resp struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}

func TestGetJobRejectsMalformedID(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/uploads/not-a-uuid", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRevisionCases(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t, false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/revisions/20261018T101500Z-abcd1234/cases?pageSize=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page struct {
		Items    []transport.RevisionCaseResponse `json:"items"`
		Total    int64                            `json:"total"`
		PageSize int                              `json:"pageSize"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.PageSize != 10 || page.Items[0].CaseNo != "LN-1" {
		t.Fatalf("unexpected page %+v", page)
	}
}
