package transport

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Money accepts a JSON number or string.
type Money string

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Money(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = Money(n.String())
	return nil
}

// CreatePaymentRequest is accepted as JSON or as multipart form fields next
// to an optional selfie. Amounts are strings so "1,500.00" and "₹1500" parse
// the same way uploaded sheets do.
type CreatePaymentRequest struct {
	Amount         Money      `json:"amount" form:"amount" validate:"required,max=32"`
	Date           *time.Time `json:"date" form:"date"`
	PaymentMode    string     `json:"paymentMode" form:"paymentMode" validate:"required,oneof=cash upi cheque neft other"`
	PenaltyCharges Money      `json:"penaltyCharges" form:"penaltyCharges" validate:"max=32"`
	BounceCharges  Money      `json:"bounceCharges" form:"bounceCharges" validate:"max=32"`
	OtherCharges   Money      `json:"otherCharges" form:"otherCharges" validate:"max=32"`
	Reference      string     `json:"reference" form:"reference" validate:"max=100"`
}

type PaymentResponse struct {
	ID             string           `json:"id"`
	CaseNo         string           `json:"caseNo"`
	Amount         decimal.Decimal  `json:"amount"`
	Date           time.Time        `json:"date"`
	PaymentMode    string           `json:"paymentMode"`
	PenaltyCharges *decimal.Decimal `json:"penaltyCharges"`
	BounceCharges  *decimal.Decimal `json:"bounceCharges"`
	OtherCharges   *decimal.Decimal `json:"otherCharges"`
	Reference      string           `json:"reference"`
	CreatedBy      string           `json:"createdBy"`
	CreatedByName  *string          `json:"createdByName"`
	SelfieURL      string           `json:"selfieUrl,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type RecordPaymentResponse struct {
	Payment       PaymentResponse  `json:"payment"`
	DueEmiAmount  decimal.Decimal  `json:"dueEmiAmount"`
	DueEmi        int              `json:"dueEmi"`
	LedgerBalance *decimal.Decimal `json:"ledgerBalance,omitempty"`
}

type PaymentListResponse struct {
	Items []PaymentResponse `json:"items"`
	Total decimal.Decimal   `json:"total"`
}
