// Package compliance finds traders who have fallen behind on payments and
// prices, renders and dispatches reminder messages to them.
package compliance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
)

// A trader with no payment for more than UnpaidAfterDays is unpaid.
const (
	UnpaidAfterDays   = 30
	criticalAfterDays = 60
	billingPeriodDays = 30
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyReminder Urgency = "reminder"
)

// UrgencyFor grades how overdue a trader is.
func UrgencyFor(days int) Urgency {
	switch {
	case days > criticalAfterDays:
		return UrgencyCritical
	case days > UnpaidAfterDays:
		return UrgencyUrgent
	}
	return UrgencyReminder
}

type Trader struct {
	Name                 string               `json:"name"`
	Phone                string               `json:"phone"`
	TotalOwed            decimal.Decimal      `json:"total_owed"`
	PaymentTypes         []models.PaymentType `json:"payment_types"`
	DaysSinceLastPayment int                  `json:"days_since_last_payment"`
	LastPayment          string               `json:"last_payment"`
	Urgency              Urgency              `json:"urgency"`
}

type traderGroup struct {
	name, phone string
	last        time.Time
	sum         decimal.Decimal
	count       int64
	types       []models.PaymentType
	seen        map[models.PaymentType]bool
}

// Unpaid groups txs by payer (name and phone) and returns every payer whose
// latest payment is more than UnpaidAfterDays old at now, most overdue first.
func Unpaid(txs []models.Transaction, now time.Time) []Trader {
	groups := make(map[string]*traderGroup)
	var order []string
	for _, t := range txs {
		key := t.PayerKey()
		g, ok := groups[key]
		if !ok {
			g = &traderGroup{name: t.PayerName, phone: t.PayerPhone, seen: map[models.PaymentType]bool{}}
			groups[key] = g
			order = append(order, key)
		}
		if t.CreatedAt.After(g.last) {
			g.last = t.CreatedAt
		}
		g.sum = g.sum.Add(t.Amount)
		g.count++
		if !g.seen[t.PaymentType] {
			g.seen[t.PaymentType] = true
			g.types = append(g.types, t.PaymentType)
		}
	}

	out := []Trader{}
	for _, key := range order {
		g := groups[key]
		days := int(now.Sub(g.last) / (24 * time.Hour))
		if days <= UnpaidAfterDays {
			continue
		}
		out = append(out, Trader{
			Name:                 g.name,
			Phone:                g.phone,
			TotalOwed:            estimateOwed(g, days),
			PaymentTypes:         g.types,
			DaysSinceLastPayment: days,
			LastPayment:          g.last.UTC().Format("2006-01-02"),
			Urgency:              UrgencyFor(days),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysSinceLastPayment > out[j].DaysSinceLastPayment
	})
	return out
}

// estimateOwed charges the trader's mean payment once per started billing
// period since the last payment.
func estimateOwed(g *traderGroup, days int) decimal.Decimal {
	periods := int64(math.Ceil(float64(days) / billingPeriodDays))
	mean := g.sum.Div(decimal.NewFromInt(g.count))
	return mean.Mul(decimal.NewFromInt(periods)).Round(0)
}

// SelectByPhone picks the traders whose phone is in phones, one per phone.
// When several payer names share a number the most overdue one is kept, so
// a phone is never messaged twice in one batch. traders must be in Unpaid
// order.
func SelectByPhone(traders []Trader, phones []string) []Trader {
	wanted := make(map[string]bool, len(phones))
	for _, p := range phones {
		if p = strings.TrimSpace(p); p != "" {
			wanted[p] = true
		}
	}
	var out []Trader
	for _, t := range traders {
		if wanted[t.Phone] {
			out = append(out, t)
			delete(wanted, t.Phone)
		}
	}
	return out
}
