package transport

import (
	"time"

	"recovery_backend/internal/stage"

	"github.com/shopspring/decimal"
)

// DailyReportRequest selects one calendar day in the collections timezone.
// Without a date the current day is used.
type DailyReportRequest struct {
	Date     string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Mode     string `form:"mode" validate:"omitempty,oneof=created commit"`
	Search   string `form:"search" validate:"max=100"`
	Area     string `form:"area" validate:"max=100"`
	Export   bool   `form:"export"`
	Format   string `form:"format" validate:"omitempty,oneof=json csv"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=500"`
}

type FollowUpReportItem struct {
	ID           string     `json:"id"`
	CaseNo       string     `json:"caseNo"`
	CustomerName string     `json:"customerName"`
	Area         string     `json:"area"`
	VisitType    string     `json:"visitType"`
	Date         time.Time  `json:"date"`
	Commit       *time.Time `json:"commit"`
	CommitStatus string     `json:"commitStatus,omitempty"`
	Attitude     string     `json:"attitude"`
	Remarks      string     `json:"remarks"`
	NoReply      bool       `json:"noReply"`
	AgentID      string     `json:"agentId"`
	AgentName    *string    `json:"agentName"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
}

type PaymentReportItem struct {
	ID             string           `json:"id"`
	CaseNo         string           `json:"caseNo"`
	CustomerName   string           `json:"customerName"`
	Area           string           `json:"area"`
	Amount         decimal.Decimal  `json:"amount"`
	Date           time.Time        `json:"date"`
	PaymentMode    string           `json:"paymentMode"`
	PenaltyCharges *decimal.Decimal `json:"penaltyCharges"`
	BounceCharges  *decimal.Decimal `json:"bounceCharges"`
	OtherCharges   *decimal.Decimal `json:"otherCharges"`
	Reference      string           `json:"reference"`
	AgentID        string           `json:"agentId"`
	AgentName      *string          `json:"agentName"`
}

// DailyReport is the paginated or exported body of a daily report.
// Page and PageSize are zero for exports.
type DailyReport[T any] struct {
	Day      string `json:"day"`
	Items    []T    `json:"items"`
	Total    int64  `json:"total"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

// Rollup aggregates a set of cases.
type Rollup struct {
	Cases           int                 `json:"cases"`
	LiveCases       int                 `json:"liveCases"`
	DueAmount       decimal.Decimal     `json:"dueAmount"`
	DueEmi          int                 `json:"dueEmi"`
	PaidAmount      decimal.Decimal     `json:"paidAmount"`
	Payments        int                 `json:"payments"`
	BrokenPTPCount  int                 `json:"brokenPtpCount"`
	BrokenPTPAmount decimal.Decimal     `json:"brokenPtpAmount"`
	Stages          map[stage.Stage]int `json:"stages"`
}

type BranchRollup struct {
	Area string `json:"area"`
	Rollup
}

type DashboardResponse struct {
	Organization Rollup         `json:"organization"`
	Branches     []BranchRollup `json:"branches"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}
