package transport

import (
	"time"

	"recovery_backend/internal/cases/model"

	"github.com/shopspring/decimal"
)

type ListCasesRequest struct {
	Search     string `form:"search" validate:"max=100"`
	Area       string `form:"area" validate:"max=100"`
	Stage      string `form:"stage" validate:"omitempty,oneof=completed pending partiallyPaid expired unknown"`
	AssignedTo string `form:"assigned" validate:"omitempty,max=36"`
	Expired    *bool  `form:"expired"`
	Page       int    `form:"page" validate:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

// Values accepted by ListCasesRequest.AssignedTo besides an employee id.
const (
	AssignedMe   = "me"
	AssignedNone = "none"
)

type CaseSummary struct {
	CaseNo            string           `json:"caseNo"`
	LoanType          string           `json:"loanType"`
	CustomerName      string           `json:"customerName"`
	EmiAmount         decimal.Decimal  `json:"emiAmount"`
	DueEmiAmount      *decimal.Decimal `json:"dueEmiAmount"`
	DueEmi            *int             `json:"dueEmi"`
	Area              string           `json:"area"`
	AssignedTo        *string          `json:"assignedTo"`
	AssigneeName      *string          `json:"assigneeName"`
	Expired           bool             `json:"expired"`
	Stage             string           `json:"stage"`
	Label             string           `json:"label"`
	IsBrokenPTP       bool             `json:"isBrokenPtp"`
	LastPTPDate       *time.Time       `json:"lastPtpDate"`
	LatestPaymentDate *time.Time       `json:"latestPaymentDate"`
	ContactNo         []string         `json:"contactNo"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

type CaseDetail struct {
	CaseSummary
	CoApplicants  []model.CoApplicant `json:"coApplicants"`
	Remarks       []model.Remark      `json:"remarks"`
	Location      *model.Location     `json:"location"`
	Details       map[string]any      `json:"details"`
	FollowUpCount int                 `json:"followUpCount"`
	OpenPromises  int                 `json:"openPromises"`
	PaymentCount  int                 `json:"paymentCount"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type AssignRequest struct {
	EmployeeID *string `json:"employeeId" validate:"omitempty,uuid"`
}

type AddRemarkRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type AddContactsRequest struct {
	Numbers         []string `json:"numbers" validate:"required,min=1,max=10,dive,required,max=32"`
	CoApplicantName string   `json:"coApplicantName" validate:"max=200"`
}

type SetLocationRequest struct {
	Latitude        *float64 `json:"latitude" validate:"required,latitude"`
	Longitude       *float64 `json:"longitude" validate:"required,longitude"`
	CoApplicantName string   `json:"coApplicantName" validate:"max=200"`
}

type SetAreaRequest struct {
	Area string `json:"area" validate:"required,max=100"`
}
