package reports

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/phillip/levy-collector-go/models"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeader = []string{"Date", "Payer Name", "Phone", "Amount", "Payment Type", "Collector", "Description"}

// ExportFilename names an export produced on day now, e.g. community-receipts-2025-01-31.csv.
func ExportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("community-receipts-%s.%s", now.Format("2006-01-02"), ext)
}

// TypeText is the payment type as written to exports: the first dash
// becomes a space ("school-fees" -> "school fees").
func TypeText(pt models.PaymentType) string {
	return strings.Replace(string(pt), "-", " ", 1)
}

// WriteCSV writes one line per transaction. Payer name, payment type,
// collector and description are always quoted; date, phone and amount never are.
func WriteCSV(w io.Writer, txs []models.Transaction, loc *time.Location) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(exportHeader, ","))

	for _, t := range txs {
		bw.WriteByte('\n')
		bw.WriteString(strings.Join([]string{
			t.CreatedAt.In(loc).Format(exportTimeLayout),
			quote(t.PayerName),
			t.PayerPhone,
			t.Amount.String(),
			quote(TypeText(t.PaymentType)),
			quote(t.Collector),
			quote(t.Description),
		}, ","))
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

const exportSheet = "Receipts"

// WriteXLSX writes the same columns as WriteCSV to a single-sheet workbook.
// Amounts are numeric cells.
func WriteXLSX(w io.Writer, txs []models.Transaction, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "G1", bold); err != nil {
		return err
	}

	for i, t := range txs {
		amount, _ := t.Amount.Float64()
		row := []interface{}{
			t.CreatedAt.In(loc).Format(exportTimeLayout),
			t.PayerName,
			t.PayerPhone,
			amount,
			TypeText(t.PaymentType),
			t.Collector,
			t.Description,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "B", "G", 18); err != nil {
		return err
	}
	return f.Write(w)
}
