package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"recovery_backend/internal/stage"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/phone"

	"github.com/shopspring/decimal"
)

// CaseRecord is one validated upload row.
type CaseRecord struct {
	CaseNo         string
	LoanType       string
	CustomerName   string
	EmiAmount      decimal.Decimal
	DueEmiAmount   decimal.Decimal
	DueEmi         int
	Area           string
	ContactNumbers []string
	Details        map[string]any
}

// CoApplicantRecord is one validated co-applicant row.
type CoApplicantRecord struct {
	CaseNo             string
	Name               string
	OwnershipIndicator string
	ContactNumbers     []string
}

// FieldError locates one rejected cell.
type FieldError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Path renders the error as rows[<line>].<Column>.
func (e FieldError) Path() string {
	return fmt.Sprintf("rows[%d].%s", e.Row, e.Column)
}

func (e FieldError) String() string {
	return e.Path() + ": " + e.Reason
}

// DateLayouts are tried in order for date cells.
var DateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-06",
	"1/2/06",
	"2006-01-02 15:04:05",
}

// MaxAmount is the largest amount a NUMERIC(14, 2) column stores.
var MaxAmount = decimal.RequireFromString("999999999999.99")

var currencyReplacer = strings.NewReplacer(",", "", "₹", "", "$", "", "INR", "", "Rs.", "", "Rs", "", " ", "")

// Normalizer validates raw rows into typed records.
type Normalizer struct {
	Location    *time.Location
	PhoneRegion string
	MaxRows     int
}

// NewNormalizer creates a Normalizer. A zero maxRows means no limit.
func NewNormalizer(loc *time.Location, phoneRegion string, maxRows int) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{Location: loc, PhoneRegion: phoneRegion, MaxRows: maxRows}
}

type errorList []FieldError

func (l *errorList) add(row int, column, reason string) {
	*l = append(*l, FieldError{Row: row, Column: column, Reason: reason})
}

func (l errorList) err(kind string) error {
	if len(l) == 0 {
		return nil
	}
	return apperr.Validation(fmt.Sprintf("%s upload rejected: %d invalid field(s), first %s", kind, len(l), l[0])).
		WithDetails(map[string]any{"errors": []FieldError(l)})
}

func (n Normalizer) checkSize(rows []RawRow) error {
	if len(rows) == 0 {
		return apperr.Validation("upload contains no data rows")
	}
	if n.MaxRows > 0 && len(rows) > n.MaxRows {
		return apperr.Validation(fmt.Sprintf("upload has %d rows, limit is %d", len(rows), n.MaxRows))
	}
	return nil
}

// Normalize validates the whole batch. Any failing required field rejects
// the batch with every failure listed.
func (n Normalizer) Normalize(rows []RawRow) ([]CaseRecord, error) {
	if err := n.checkSize(rows); err != nil {
		return nil, err
	}

	var errs errorList
	records := make([]CaseRecord, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		for _, header := range RequiredColumns {
			if row.Get(header) == "" {
				errs.add(row.Line, header, "is required")
			}
		}

		caseNo := row.Get(HeaderCaseNo)
		if caseNo != "" {
			if first, dup := seen[caseNo]; dup {
				errs.add(row.Line, HeaderCaseNo, fmt.Sprintf("duplicates row %d", first))
			} else {
				seen[caseNo] = row.Line
			}
		}

		emi, emiOK := requiredAmount(row, HeaderEMIAmt, &errs)
		due, dueOK := requiredAmount(row, HeaderDueEMIAmt, &errs)
		if !emiOK || !dueOK || caseNo == "" {
			continue
		}
		dueEmi := stage.DueEmi(due, emi)
		if dueEmi >= stage.MaxDueEmi {
			errs.add(row.Line, HeaderDueEMIAmt, "is too many instalments of "+HeaderEMIAmt)
			continue
		}

		records = append(records, CaseRecord{
			CaseNo:         caseNo,
			LoanType:       strings.ToUpper(row.Get(HeaderLoanType)),
			CustomerName:   row.Get(HeaderCustomer),
			EmiAmount:      emi,
			DueEmiAmount:   due,
			DueEmi:         dueEmi,
			Area:           strings.ToUpper(row.Get(HeaderArea)),
			ContactNumbers: n.contacts(row.Get(HeaderContactNo), row.Get(HeaderAltContact)),
			Details:        n.details(row),
		})
	}

	if err := errs.err("case"); err != nil {
		return nil, err
	}
	return records, nil
}

// NormalizeCoApplicants validates a co-applicant batch.
func (n Normalizer) NormalizeCoApplicants(rows []RawRow) ([]CoApplicantRecord, error) {
	if err := n.checkSize(rows); err != nil {
		return nil, err
	}

	var errs errorList
	records := make([]CoApplicantRecord, 0, len(rows))
	for _, row := range rows {
		valid := true
		for _, header := range CoApplicantRequiredColumns {
			if row.Get(header) == "" {
				errs.add(row.Line, header, "is required")
				valid = false
			}
		}
		if !valid {
			continue
		}
		records = append(records, CoApplicantRecord{
			CaseNo:             row.Get(HeaderCaseNo),
			Name:               row.Get(HeaderName),
			OwnershipIndicator: strings.ToUpper(row.Get(HeaderOwnershipIndicator)),
			ContactNumbers:     n.contacts(row.Get(HeaderContactNo)),
		})
	}

	if err := errs.err("co-applicant"); err != nil {
		return nil, err
	}
	return records, nil
}

func requiredAmount(row RawRow, header string, errs *errorList) (decimal.Decimal, bool) {
	raw := row.Get(header)
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		errs.add(row.Line, header, "must be a number")
		return decimal.Zero, false
	}
	if amount.IsNegative() {
		errs.add(row.Line, header, "must not be negative")
		return decimal.Zero, false
	}
	if amount.GreaterThan(MaxAmount) {
		errs.add(row.Line, header, "must not exceed "+MaxAmount.String())
		return decimal.Zero, false
	}
	return amount, true
}

// ParseAmount parses a money cell, ignoring thousands separators and
// currency markers.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := currencyReplacer.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(cleaned)
}

func (n Normalizer) contacts(cells ...string) []string {
	var numbers []string
	for _, cell := range cells {
		numbers = append(numbers, phone.SplitCell(cell)...)
	}
	return phone.NormalizeList(numbers, n.PhoneRegion)
}

func (n Normalizer) details(row RawRow) map[string]any {
	details := make(map[string]any, len(DetailColumns))
	for _, col := range DetailColumns {
		raw := row.Get(col.Header)
		switch col.Kind {
		case KindText:
			details[col.Key] = raw
		case KindUpper:
			details[col.Key] = strings.ToUpper(raw)
		case KindMoney:
			amount, err := ParseAmount(raw)
			if err != nil {
				amount = decimal.Zero
			}
			details[col.Key] = amount
		case KindInt:
			details[col.Key] = parseIntOrZero(raw)
		case KindPhone:
			details[col.Key] = phone.NormalizeE164(raw, n.PhoneRegion)
		case KindDate:
			details[col.Key] = raw
			if t, ok := ParseDate(raw, n.Location); ok {
				start, end := stage.DayBounds(t, n.Location)
				details[col.Key] = start.Format("2006-01-02")
				details[col.Key+"TimeStamp"] = start.Unix()
				details[col.Key+"EndTimeStamp"] = end.Unix()
			}
		}
	}
	return details
}

func parseIntOrZero(raw string) int64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if v, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return 0
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses a date cell with DateLayouts, falling back to an Excel
// serial day number. The result is midnight of that date in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= 1 && serial < 2958466 {
		d := excelEpoch.AddDate(0, 0, int(serial))
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}
