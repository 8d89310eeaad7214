package handler

import (
	"encoding/csv"
	"strconv"
	"time"

	"recovery_backend/internal/reports/transport"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var followUpHeaders = []string{
	"Case No", "Customer Name", "Area", "Visit Type", "Date", "Commit", "Commit Status",
	"Attitude", "Remarks", "No Reply", "Agent", "Latitude", "Longitude",
}

var paymentHeaders = []string{
	"Case No", "Customer Name", "Area", "Amount", "Date", "Payment Mode",
	"Penalty Charges", "Bounce Charges", "Other Charges", "Reference", "Agent",
}

func writeCSV(c *gin.Context, fileName string, headers []string, records [][]string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+fileName)

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return
		}
	}
	writer.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatMoney(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func followUpRecords(items []transport.FollowUpReportItem) [][]string {
	records := make([][]string, 0, len(items))
	for _, item := range items {
		records = append(records, []string{
			item.CaseNo,
			item.CustomerName,
			item.Area,
			item.VisitType,
			formatTime(&item.Date),
			formatTime(item.Commit),
			item.CommitStatus,
			item.Attitude,
			item.Remarks,
			strconv.FormatBool(item.NoReply),
			deref(item.AgentName),
			formatFloat(item.Latitude),
			formatFloat(item.Longitude),
		})
	}
	return records
}

func paymentRecords(items []transport.PaymentReportItem) [][]string {
	records := make([][]string, 0, len(items))
	for _, item := range items {
		records = append(records, []string{
			item.CaseNo,
			item.CustomerName,
			item.Area,
			item.Amount.StringFixed(2),
			formatTime(&item.Date),
			item.PaymentMode,
			formatMoney(item.PenaltyCharges),
			formatMoney(item.BounceCharges),
			formatMoney(item.OtherCharges),
			item.Reference,
			deref(item.AgentName),
		})
	}
	return records
}
