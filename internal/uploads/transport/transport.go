package transport

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// UploadRequest carries the form fields next to the uploaded file.
type UploadRequest struct {
	Type string `form:"type" validate:"omitempty,oneof=cases coapplicants"`
}

type JobResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	FileName   string          `json:"fileName"`
	RowCount   int             `json:"rowCount"`
	RevisionID *string         `json:"revisionId,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *string         `json:"error,omitempty"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type PageRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type RevisionResponse struct {
	RevisionID    string          `json:"revisionId"`
	JobID         string          `json:"jobId"`
	FileName      string          `json:"fileName"`
	CreatedBy     string          `json:"createdBy"`
	CreatedByName *string         `json:"createdByName"`
	Result        json.RawMessage `json:"result"`
	AppliedAt     time.Time       `json:"appliedAt"`
}

type RevisionCaseResponse struct {
	CaseNo       string           `json:"caseNo"`
	LoanType     string           `json:"loanType"`
	CustomerName string           `json:"customerName"`
	EmiAmount    decimal.Decimal  `json:"emiAmount"`
	DueEmiAmount *decimal.Decimal `json:"dueEmiAmount"`
	DueEmi       *int             `json:"dueEmi"`
	Area         string           `json:"area"`
	AssignedTo   *string          `json:"assignedTo"`
	Expired      bool             `json:"expired"`
	ContactNo    []string         `json:"contactNo"`
	Details      map[string]any   `json:"details"`
	ArchivedAt   time.Time        `json:"archivedAt"`
}
