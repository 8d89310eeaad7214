package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"recovery_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

func caseRow(line int, overrides map[string]string) RawRow {
	values := map[string]string{
		"Case No":     "LN-100",
		"Loan Type":   "two wheeler",
		"Due EMI Amt": "2,500",
		"EMI Amt":     "1000",
		"Area":        "pune",
	}
	for k, v := range overrides {
		values[k] = v
	}
	return NewRawRow(line, values)
}

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T %v", err, err)
	}
	if appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation kind, got %v", appErr.Kind)
	}
	details, ok := appErr.Details.(map[string]any)
	if !ok {
		t.Fatalf("unexpected details %T", appErr.Details)
	}
	list, _ := details["errors"].([]FieldError)
	return list
}

func TestNormalizeValidRow(t *testing.T) {
	n := NewNormalizer(time.UTC, "IN", 0)
	records, err := n.Normalize([]RawRow{caseRow(2, map[string]string{
		"Customer Name":  " Asha Patil ",
		"Contact No":     "98765 43210 / 9123456780",
		"Bucket":         "b2",
		"Tenure":         "36",
		"POS":            "₹ 45,000.50",
		"Disbursal Date": "05-01-2024",
		"Maturity Date":  "45322",
		"First EMI Date": "not a date",
	})})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.LoanType != "TWO WHEELER" || r.Area != "PUNE" {
		t.Fatalf("enumerations not upper-cased: %q %q", r.LoanType, r.Area)
	}
	if !r.DueEmiAmount.Equal(decimal.NewFromInt(2500)) || r.DueEmi != 3 {
		t.Fatalf("due = %s / %d", r.DueEmiAmount, r.DueEmi)
	}
	if r.CustomerName != "Asha Patil" {
		t.Fatalf("customer not trimmed: %q", r.CustomerName)
	}
	if len(r.ContactNumbers) != 2 || r.ContactNumbers[0] != "+919876543210" {
		t.Fatalf("contacts = %v", r.ContactNumbers)
	}
	if r.Details["bucket"] != "B2" || r.Details["tenure"] != int64(36) {
		t.Fatalf("details = %v", r.Details)
	}
	if pos := r.Details["pos"].(decimal.Decimal); !pos.Equal(decimal.RequireFromString("45000.5")) {
		t.Fatalf("pos = %s", pos)
	}

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if r.Details["disbursalDate"] != "2024-01-05" {
		t.Fatalf("disbursalDate = %v", r.Details["disbursalDate"])
	}
	if r.Details["disbursalDateTimeStamp"] != start.Unix() {
		t.Fatalf("start stamp = %v", r.Details["disbursalDateTimeStamp"])
	}
	if r.Details["disbursalDateEndTimeStamp"] != start.Add(24*time.Hour-time.Nanosecond).Unix() {
		t.Fatalf("end stamp = %v", r.Details["disbursalDateEndTimeStamp"])
	}
	if r.Details["maturityDate"] != "2024-01-31" {
		t.Fatalf("excel serial date = %v", r.Details["maturityDate"])
	}
	if r.Details["firstEmiDate"] != "not a date" {
		t.Fatalf("unparsable date should be kept: %v", r.Details["firstEmiDate"])
	}
	if _, ok := r.Details["firstEmiDateTimeStamp"]; ok {
		t.Fatal("unparsable date must not produce timestamps")
	}
	if r.Details["loanAmount"].(decimal.Decimal).Sign() != 0 {
		t.Fatal("missing optional number should fall back to 0")
	}
}

func TestNormalizeRejectsWholeBatch(t *testing.T) {
	n := NewNormalizer(time.UTC, "IN", 0)
	rows := []RawRow{
		caseRow(2, nil),
		caseRow(3, map[string]string{"Case No": "LN-101", "EMI Amt": "abc"}),
		caseRow(4, map[string]string{"Case No": "LN-102", "Area": " "}),
		caseRow(5, map[string]string{"Case No": "LN-103", "Due EMI Amt": "-5"}),
		caseRow(6, nil),
	}

	records, err := n.Normalize(rows)
	if records != nil {
		t.Fatal("no records may be returned for a rejected batch")
	}
	got := fieldErrors(t, err)

	want := map[string]bool{
		"rows[3].EMI Amt":     true,
		"rows[4].Area":        true,
		"rows[5].Due EMI Amt": true,
		"rows[6].Case No":     true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), got)
	}
	for _, fe := range got {
		if !want[fe.Path()] {
			t.Fatalf("unexpected error %s", fe)
		}
	}
	if !strings.Contains(err.Error(), "4 invalid field(s)") {
		t.Fatalf("message should count failures: %s", err.Error())
	}
}

func TestNormalizeRejectsOutOfRangeAmounts(t *testing.T) {
	n := NewNormalizer(time.UTC, "IN", 0)
	rows := []RawRow{
		caseRow(2, map[string]string{"Due EMI Amt": "100000000000000000000"}),
		caseRow(3, map[string]string{"Case No": "LN-101", "EMI Amt": "1e15"}),
		caseRow(4, map[string]string{"Case No": "LN-102", "Due EMI Amt": "999999999999", "EMI Amt": "0.01"}),
		caseRow(5, map[string]string{"Case No": "LN-103", "Due EMI Amt": "999999999999.99", "EMI Amt": "1000"}),
	}

	_, err := n.Normalize(rows)
	got := fieldErrors(t, err)

	want := []string{"rows[2].Due EMI Amt", "rows[3].EMI Amt", "rows[4].Due EMI Amt"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i, fe := range got {
		if fe.Path() != want[i] {
			t.Fatalf("error %d: got %s, want %s", i, fe, want[i])
		}
	}
}

func TestNormalizeEmptyAndOversized(t *testing.T) {
	n := NewNormalizer(time.UTC, "IN", 2)
	if _, err := n.Normalize(nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty upload: %v", err)
	}
	rows := []RawRow{caseRow(2, nil), caseRow(3, map[string]string{"Case No": "B"}), caseRow(4, map[string]string{"Case No": "C"})}
	if _, err := n.Normalize(rows); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("oversized upload: %v", err)
	}
}

func TestNormalizeCoApplicants(t *testing.T) {
	n := NewNormalizer(time.UTC, "IN", 0)
	records, err := n.NormalizeCoApplicants([]RawRow{
		NewRawRow(2, map[string]string{"Case No": "LN-1", "Name": "Ravi", "Ownership Indicator": "co-borrower", "Contact No": "9876543210"}),
		NewRawRow(3, map[string]string{"Case No": "LN-1", "Name": "Sita", "Ownership Indicator": "guarantor"}),
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records) != 2 || records[0].OwnershipIndicator != "CO-BORROWER" || records[0].ContactNumbers[0] != "+919876543210" {
		t.Fatalf("records = %+v", records)
	}

	_, err = n.NormalizeCoApplicants([]RawRow{NewRawRow(2, map[string]string{"Case No": "LN-1"})})
	if got := fieldErrors(t, err); len(got) != 2 {
		t.Fatalf("expected Name and Ownership Indicator errors, got %v", got)
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"07-03-2024", "07/03/2024", "2024-03-07", "07-Mar-2024", "07-Mar-24", "3/7/24", "45358"} {
		got, ok := ParseDate(raw, time.UTC)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, %v", raw, got, ok)
		}
	}
	if _, ok := ParseDate("31-31-2024", time.UTC); ok {
		t.Error("invalid date parsed")
	}
}

func TestHeaderMatchingIgnoresCaseAndSpacing(t *testing.T) {
	row := NewRawRow(2, map[string]string{"  CASE  NO ": "X1", "due_emi_amt": "10"})
	if row.Get("Case No") != "X1" || row.Get("Due EMI Amt") != "10" {
		t.Fatalf("lookup failed: %q %q", row.Get("Case No"), row.Get("Due EMI Amt"))
	}
}
