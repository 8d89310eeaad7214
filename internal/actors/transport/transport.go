package transport

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type LedgerEntryResponse struct {
	ID           string          `json:"id"`
	CaseNo       string          `json:"caseNo"`
	PaymentID    string          `json:"paymentId"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type LedgerResponse struct {
	EmployeeID string                `json:"employeeId"`
	Name       string                `json:"name"`
	Balance    decimal.Decimal       `json:"balance"`
	Entries    []LedgerEntryResponse `json:"entries"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
}
