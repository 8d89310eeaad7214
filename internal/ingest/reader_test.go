package ingest

import (
	"bytes"
	"strings"
	"testing"

	"recovery_backend/platform/apperr"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	data := "\ufeffCase No,Loan Type,Due EMI Amt\n" +
		"LN-1,car,\"1,200\"\n" +
		",,\n" +
		"LN-2,bike,300\n"

	rows, err := ReadRows("cases.CSV", strings.NewReader(data))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank skipped), got %d", len(rows))
	}
	if rows[0].Get("Case No") != "LN-1" || rows[0].Get("Due EMI Amt") != "1,200" {
		t.Fatalf("unexpected first row: %q %q", rows[0].Get("Case No"), rows[0].Get("Due EMI Amt"))
	}
	if rows[1].Line != 4 {
		t.Fatalf("line numbers should follow the file, got %d", rows[1].Line)
	}
}

func TestReadXLSX(t *testing.T) {
	book := excelize.NewFile()
	cells := map[string]string{
		"A1": "Case No", "B1": "Area",
		"A2": "LN-9", "B2": "Nashik",
	}
	for cell, value := range cells {
		if err := book.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := ReadRows("upload.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0].Get("Area") != "Nashik" || rows[0].Line != 2 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadRowsUnsupportedFormat(t *testing.T) {
	_, err := ReadRows("cases.pdf", strings.NewReader("%PDF"))
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if ae := err.(*apperr.Error); ae.Code != apperr.CodeUnsupportedFormat {
		t.Fatalf("code = %q", ae.Code)
	}
}

func TestCheckFormat(t *testing.T) {
	for _, name := range []string{"a.csv", "B.XLSX", "c.xls"} {
		if err := CheckFormat(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if err := CheckFormat("cases.ods"); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestReadRowsCorruptWorkbook(t *testing.T) {
	_, err := ReadRows("cases.xlsx", strings.NewReader("not a zip"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
