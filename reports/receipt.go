package reports

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/utils"
)

const (
	ReceiptIssuer = "Community E-Receipts Platform"
	receiptStatus = "Confirmed"
)

type Receipt struct {
	Number      string          `json:"receipt_number"`
	IssuedAt    time.Time       `json:"issued_at"`
	DateText    string          `json:"date"`
	PayerName   string          `json:"payer_name"`
	PayerPhone  string          `json:"payer_phone"`
	PaymentType string          `json:"payment_type"`
	Amount      decimal.Decimal `json:"amount"`
	AmountText  string          `json:"amount_formatted"`
	Description string          `json:"description,omitempty"`
	Collector   string          `json:"collector"`
	Status      string          `json:"status"`
	Issuer      string          `json:"issuer"`
}

func NewReceipt(t models.Transaction, loc *time.Location) Receipt {
	return Receipt{
		Number:      t.ID,
		IssuedAt:    t.CreatedAt,
		DateText:    t.CreatedAt.In(loc).Format("January 2, 2006 at 3:04 PM"),
		PayerName:   t.PayerName,
		PayerPhone:  t.PayerPhone,
		PaymentType: t.PaymentType.Label(),
		Amount:      t.Amount,
		AmountText:  utils.FormatNaira(t.Amount),
		Description: t.Description,
		Collector:   t.Collector,
		Status:      receiptStatus,
		Issuer:      ReceiptIssuer,
	}
}

var receiptHTML = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Receipt {{.Number}}</title>
<style>
body{font-family:sans-serif;max-width:32rem;margin:2rem auto;color:#111}
h1{margin-bottom:0}.muted{color:#666;font-size:.85rem}
table{width:100%;border-collapse:collapse;margin:1rem 0}td{padding:.35rem 0}
td:last-child{text-align:right;font-weight:600}.amount{font-size:1.3rem}
.status{color:#15803d}footer{text-align:center;margin-top:2rem}
@media print{button{display:none}}
</style>
</head>
<body>
<h1>Payment Receipt</h1>
<p class="muted">{{.Issuer}}</p>
<table>
<tr><td>Receipt #</td><td>{{.Number}}</td></tr>
<tr><td>Date &amp; Time</td><td>{{.DateText}}</td></tr>
<tr><td>Payer</td><td>{{.PayerName}}</td></tr>
<tr><td>Phone</td><td>{{.PayerPhone}}</td></tr>
<tr><td>Payment Type</td><td>{{.PaymentType}}</td></tr>
<tr><td>Amount</td><td class="amount">{{.AmountText}}</td></tr>
{{- if .Description}}
<tr><td>Description</td><td>{{.Description}}</td></tr>
{{- end}}
<tr><td>Collected By</td><td>{{.Collector}}</td></tr>
<tr><td>Status</td><td class="status">{{.Status}}</td></tr>
</table>
<button onclick="window.print()">Print Receipt</button>
<footer class="muted">
<p>This is an official receipt generated by {{.Issuer}}</p>
<p>For inquiries, contact your community administrator</p>
</footer>
</body>
</html>
`))

func (r Receipt) WriteHTML(w io.Writer) error {
	return receiptHTML.Execute(w, r)
}

func (r Receipt) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Text is the plain receipt used for SMS and printing on thermal printers.
func (r Receipt) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PAYMENT RECEIPT\n%s\n\n", r.Issuer)
	fmt.Fprintf(&b, "Receipt #: %s\n", r.Number)
	fmt.Fprintf(&b, "Date: %s\n", r.DateText)
	fmt.Fprintf(&b, "Payer: %s (%s)\n", r.PayerName, r.PayerPhone)
	fmt.Fprintf(&b, "Payment Type: %s\n", r.PaymentType)
	fmt.Fprintf(&b, "Amount: %s\n", r.AmountText)
	if r.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", r.Description)
	}
	fmt.Fprintf(&b, "Collected By: %s\n", r.Collector)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	return b.String()
}
