package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"recovery_backend/platform/apperr"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
	"github.com/extrame/xls"
)

// RawRow is one data row keyed by header. Line is the 1-based row number in
// the source file, so the header is line 1.
type RawRow struct {
	Line  int
	cells map[string]string
}

// NewRawRow builds a row from header -> value pairs.
func NewRawRow(line int, values map[string]string) RawRow {
	cells := make(map[string]string, len(values))
	for header, value := range values {
		cells[canonicalHeader(header)] = value
	}
	return RawRow{Line: line, cells: cells}
}

// Get returns the trimmed cell under header, matched ignoring case, spacing
// and punctuation.
func (r RawRow) Get(header string) string {
	return strings.TrimSpace(r.cells[canonicalHeader(header)])
}

func canonicalHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CheckFormat rejects file names whose extension ReadRows cannot read.
func CheckFormat(fileName string) error {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".xlsx", ".xls":
		return nil
	default:
		return apperr.UnsupportedFormat(ext)
	}
}

// ReadRows reads the first sheet of a .csv, .xlsx or .xls upload.
func ReadRows(fileName string, r io.ReadSeeker) ([]RawRow, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	var (
		table [][]string
		err   error
	)
	switch ext {
	case ".csv":
		table, err = readCSV(r)
	case ".xlsx":
		table, err = readXLSX(r)
	case ".xls":
		table, err = readXLS(r)
	default:
		return nil, apperr.UnsupportedFormat(ext)
	}
	if err != nil {
		return nil, apperr.Validation("file could not be read").WithDetails(map[string]string{"file": err.Error()})
	}
	return tableToRows(table), nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return book.GetRows(sheets[0])
}

func readXLS(r io.ReadSeeker) ([][]string, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	table := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			table = append(table, nil)
			continue
		}
		values := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			values = append(values, row.Col(j))
		}
		table = append(table, values)
	}
	return table, nil
}

// tableToRows takes the first non-empty row as headers and drops rows with
// no values.
func tableToRows(table [][]string) []RawRow {
	headerIdx := -1
	for i, row := range table {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	headers := make([]string, len(table[headerIdx]))
	for i, h := range table[headerIdx] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]RawRow, 0, len(table)-headerIdx-1)
	for i := headerIdx + 1; i < len(table); i++ {
		if blankRow(table[i]) {
			continue
		}
		values := make(map[string]string, len(headers))
		for col, header := range headers {
			if header == "" || col >= len(table[i]) {
				continue
			}
			values[header] = table[i][col]
		}
		rows = append(rows, NewRawRow(i+1, values))
	}
	return rows
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
