// Package reports aggregates, exports and imports transaction listings and
// renders printable receipts.
package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/store"
)

type TypeTotal struct {
	PaymentType models.PaymentType `json:"payment_type"`
	Label       string             `json:"label"`
	Count       int                `json:"count"`
	Amount      decimal.Decimal    `json:"amount"`
}

type Summary struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Transactions     int             `json:"total_transactions"`
	UniqueCollectors int             `json:"unique_collectors"`
	UniqueTraders    int             `json:"unique_traders"`
	ByPaymentType    []TypeTotal     `json:"by_payment_type"`
}

// Summarize totals txs. Traders are counted by payer name.
func Summarize(txs []models.Transaction) Summary {
	s := Summary{TotalAmount: decimal.Zero, Transactions: len(txs)}
	collectors := map[string]struct{}{}
	traders := map[string]struct{}{}
	byType := map[models.PaymentType]*TypeTotal{}

	for _, t := range txs {
		s.TotalAmount = s.TotalAmount.Add(t.Amount)
		collectors[t.Collector] = struct{}{}
		traders[t.PayerName] = struct{}{}

		tt, ok := byType[t.PaymentType]
		if !ok {
			tt = &TypeTotal{PaymentType: t.PaymentType, Label: t.PaymentType.Label(), Amount: decimal.Zero}
			byType[t.PaymentType] = tt
		}
		tt.Count++
		tt.Amount = tt.Amount.Add(t.Amount)
	}

	s.UniqueCollectors = len(collectors)
	s.UniqueTraders = len(traders)
	s.ByPaymentType = []TypeTotal{}
	for _, pt := range models.PaymentTypes() {
		if tt, ok := byType[pt]; ok {
			s.ByPaymentType = append(s.ByPaymentType, *tt)
			delete(byType, pt)
		}
	}
	// legacy rows with types outside the fixed set
	for _, tt := range byType {
		s.ByPaymentType = append(s.ByPaymentType, *tt)
	}
	return s
}

// Query is the listing filter as it arrives on the wire.
type Query struct {
	Date        string // YYYY-MM-DD in the reporting timezone
	Collector   string
	PaymentType string // "all" or empty means any
	Search      string
	Limit       int
}

// ToFilter resolves q against loc. Date selects one calendar day.
func (q Query) ToFilter(loc *time.Location) (store.Filter, error) {
	f := store.Filter{
		Collector: strings.TrimSpace(q.Collector),
		Search:    strings.TrimSpace(q.Search),
		Limit:     q.Limit,
	}

	if d := strings.TrimSpace(q.Date); d != "" {
		day, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return store.Filter{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
		f.From = day
		f.To = day.AddDate(0, 0, 1)
	}

	if pt := strings.TrimSpace(q.PaymentType); pt != "" && pt != "all" {
		if !models.PaymentType(pt).Valid() {
			return store.Filter{}, fmt.Errorf("invalid payment_type %q", pt)
		}
		f.PaymentType = models.PaymentType(pt)
	}
	return f, nil
}
