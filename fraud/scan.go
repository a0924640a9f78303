// Package fraud flags suspicious transactions with fixed-weight heuristics.
// Nothing here is learned; each rule adds a constant to a score.
package fraud

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/models"
	"github.com/phillip/levy-collector-go/utils"
)

type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
	RiskLow    Risk = "low"
)

func (r Risk) rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	}
	return 1
}

// Rule weights.
const (
	WeightDuplicateAmount = 30
	WeightAboveAverage    = 25
	WeightRapidRepeat     = 35
	WeightRoundAmount     = 15
	WeightNoDescription   = 20

	highThreshold   = 60
	mediumThreshold = 30
	maxConfidence   = 95
)

var (
	rapidWindow        = time.Minute
	roundUnit          = decimal.NewFromInt(1000)
	roundFloor         = decimal.NewFromInt(10000)
	largeAmount        = decimal.NewFromInt(50000)
	aboveAverageFactor = decimal.NewFromInt(3)
)

type Alert struct {
	ID          string             `json:"id"`
	Transaction models.Transaction `json:"transaction"`
	Risk        Risk               `json:"risk_level"`
	Reasons     []string           `json:"reasons"`
	Confidence  int                `json:"confidence"`
}

type Result struct {
	Alerts       []Alert `json:"alerts"`
	Transactions int     `json:"total_transactions"`
	High         int     `json:"high_risk"`
	Medium       int     `json:"medium_risk"`
	Low          int     `json:"low_risk"`
	Clean        int     `json:"clean"`
}

// Scan runs every rule against every transaction in txs.
func Scan(txs []models.Transaction) Result {
	res := Result{Alerts: []Alert{}, Transactions: len(txs)}
	if len(txs) == 0 {
		return res
	}

	byPayer := make(map[string][]models.Transaction)
	sum := decimal.Zero
	for _, t := range txs {
		byPayer[t.PayerKey()] = append(byPayer[t.PayerKey()], t)
		sum = sum.Add(t.Amount)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(txs))))

	for _, t := range txs {
		var (
			reasons []string
			score   int
		)
		peers := byPayer[t.PayerKey()]

		if hasPeer(t, peers, func(o models.Transaction) bool { return o.Amount.Equal(t.Amount) }) {
			reasons = append(reasons, fmt.Sprintf("Duplicate amount (%s) from same payer", utils.FormatNairaShort(t.Amount)))
			score += WeightDuplicateAmount
		}

		if t.Amount.GreaterThan(mean.Mul(aboveAverageFactor)) {
			reasons = append(reasons, fmt.Sprintf("Amount significantly above average (%s vs %s)",
				utils.FormatNairaShort(t.Amount), utils.FormatNairaShort(mean)))
			score += WeightAboveAverage
		}

		if hasPeer(t, peers, func(o models.Transaction) bool { return absDuration(t.CreatedAt.Sub(o.CreatedAt)) < rapidWindow }) {
			reasons = append(reasons, "Multiple transactions within 1 minute")
			score += WeightRapidRepeat
		}

		if t.Amount.Mod(roundUnit).IsZero() && t.Amount.GreaterThanOrEqual(roundFloor) {
			reasons = append(reasons, fmt.Sprintf("Suspiciously round amount (%s)", utils.FormatNairaShort(t.Amount)))
			score += WeightRoundAmount
		}

		if t.Amount.GreaterThan(largeAmount) && t.Description == "" {
			reasons = append(reasons, "Large amount without description")
			score += WeightNoDescription
		}

		if len(reasons) == 0 {
			continue
		}
		res.Alerts = append(res.Alerts, Alert{
			ID:          "alert_" + t.ID,
			Transaction: t,
			Risk:        riskFor(score),
			Reasons:     reasons,
			Confidence:  min(score, maxConfidence),
		})
	}

	sort.SliceStable(res.Alerts, func(i, j int) bool {
		a, b := res.Alerts[i], res.Alerts[j]
		if a.Risk != b.Risk {
			return a.Risk.rank() > b.Risk.rank()
		}
		return a.Confidence > b.Confidence
	})

	for _, a := range res.Alerts {
		switch a.Risk {
		case RiskHigh:
			res.High++
		case RiskMedium:
			res.Medium++
		default:
			res.Low++
		}
	}
	res.Clean = res.Transactions - len(res.Alerts)
	return res
}

// riskFor grades the uncapped score.
func riskFor(score int) Risk {
	switch {
	case score >= highThreshold:
		return RiskHigh
	case score >= mediumThreshold:
		return RiskMedium
	}
	return RiskLow
}

func hasPeer(t models.Transaction, peers []models.Transaction, match func(models.Transaction) bool) bool {
	for _, o := range peers {
		if o.ID != t.ID && match(o) {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
