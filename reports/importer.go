package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/store"
	"github.com/phillip/levy-collector-go/utils"
)

// column keys
const (
	colName        = "name"
	colPhone       = "phone"
	colAmount      = "amount"
	colType        = "type"
	colCollector   = "collector"
	colDescription = "description"
	colDate        = "date"
)

var headerAliases = map[string]string{
	"payer name":   colName,
	"payer":        colName,
	"name":         colName,
	"trader":       colName,
	"phone":        colPhone,
	"payer phone":  colPhone,
	"phone number": colPhone,
	"amount":       colAmount,
	"amount (₦)":   colAmount,
	"payment type": colType,
	"type":         colType,
	"collector":    colCollector,
	"description":  colDescription,
	"note":         colDescription,
	"date":         colDate,
	"created at":   colDate,
}

var requiredColumns = []string{colName, colPhone, colAmount, colType}

var ErrEmptyWorkbook = errors.New("workbook has no rows")

type RowError struct {
	Row   int    `json:"row"` // 1-based, as shown in the spreadsheet
	Error string `json:"error"`
}

type ImportResult struct {
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

type ImportOptions struct {
	// Collector is used for rows without a collector column value.
	Collector string
	Location  *time.Location
	Now       func() time.Time
}

// ImportXLSX reads the first sheet of the workbook in r, maps columns by
// header name and inserts every valid row. Invalid rows are reported and skipped.
func ImportXLSX(ctx context.Context, r io.Reader, dst store.Transactions, opts ImportOptions) (ImportResult, error) {
	res := ImportResult{Errors: []RowError{}}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return res, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return res, ErrEmptyWorkbook
	}

	headers := detectHeaders(rows[0])
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := headers[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		res.Rows++
		line := i + 2

		t, err := rowToTransaction(row, headers, opts)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: line, Error: err.Error()})
			continue
		}
		if err := dst.InsertTransaction(ctx, t); err != nil {
			slog.Error("import insert failed", "row", line, "err", err)
			res.Errors = append(res.Errors, RowError{Row: line, Error: "failed to record transaction"})
			continue
		}
		res.Imported++
	}
	return res, nil
}

func detectHeaders(header []string) map[string]int {
	out := make(map[string]int)
	for j, cell := range header {
		key, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = j
		}
	}
	return out
}

func cell(row []string, headers map[string]int, key string) string {
	idx, ok := headers[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowToTransaction(row []string, headers map[string]int, opts ImportOptions) (*models.Transaction, error) {
	t := &models.Transaction{
		PayerName:   cell(row, headers, colName),
		PayerPhone:  cell(row, headers, colPhone),
		Description: cell(row, headers, colDescription),
		Collector:   cell(row, headers, colCollector),
	}
	if t.PayerName == "" || t.PayerPhone == "" {
		return nil, errors.New("payer name and phone are required")
	}

	amount, err := utils.ParseAmount(cell(row, headers, colAmount))
	if err != nil {
		return nil, err
	}
	t.Amount = amount

	pt, err := ParsePaymentType(cell(row, headers, colType))
	if err != nil {
		return nil, err
	}
	t.PaymentType = pt

	if t.Collector == "" {
		t.Collector = opts.Collector
	}

	if raw := cell(row, headers, colDate); raw != "" {
		at, err := utils.ParseDateTime(raw, opts.Location)
		if err != nil {
			return nil, err
		}
		t.CreatedAt = at.UTC()
	} else {
		t.CreatedAt = opts.Now().UTC()
	}
	return t, nil
}

// ParsePaymentType accepts the stored form ("school-fees"), the export form
// ("school fees") and the label ("School Fees").
func ParsePaymentType(s string) (models.PaymentType, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
	pt := models.PaymentType(norm)
	if !pt.Valid() {
		return "", fmt.Errorf("invalid payment type %q", s)
	}
	return pt, nil
}
