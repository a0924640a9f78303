package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is one of the fixed levy categories a collector can record.
type PaymentType string

const (
	PaymentSchoolFees      PaymentType = "school-fees"
	PaymentCommunityLevy   PaymentType = "community-levy"
	PaymentDevelopmentFund PaymentType = "development-fund"
	PaymentRegistrationFee PaymentType = "registration-fee"
	PaymentOther           PaymentType = "other"
)

var paymentTypeLabels = map[PaymentType]string{
	PaymentSchoolFees:      "School Fees",
	PaymentCommunityLevy:   "Community Levy",
	PaymentDevelopmentFund: "Development Fund",
	PaymentRegistrationFee: "Registration Fee",
	PaymentOther:           "Other",
}

// PaymentTypes lists every accepted payment type in display order.
func PaymentTypes() []PaymentType {
	return []PaymentType{
		PaymentSchoolFees,
		PaymentCommunityLevy,
		PaymentDevelopmentFund,
		PaymentRegistrationFee,
		PaymentOther,
	}
}

func (p PaymentType) Valid() bool {
	_, ok := paymentTypeLabels[p]
	return ok
}

// Label is the human readable name printed on receipts.
func (p PaymentType) Label() string {
	if l, ok := paymentTypeLabels[p]; ok {
		return l
	}
	return paymentTypeLabels[PaymentOther]
}

type Transaction struct {
	ID          string          `bson:"_id" json:"id"`
	PayerName   string          `bson:"payer_name" json:"payer_name"`
	PayerPhone  string          `bson:"payer_phone" json:"payer_phone"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
	PaymentType PaymentType     `bson:"payment_type" json:"payment_type"`
	Description string          `bson:"description" json:"description"`
	Collector   string          `bson:"collector" json:"collector"` // collector email
	CreatedAt   time.Time       `bson:"created_at" json:"created_at"`
}

// PayerKey identifies a payer across transactions (name + phone).
func (t Transaction) PayerKey() string {
	return t.PayerName + "_" + t.PayerPhone
}

// Normalize trims the free-text fields in place.
func (t *Transaction) Normalize() {
	t.PayerName = strings.TrimSpace(t.PayerName)
	t.PayerPhone = strings.TrimSpace(t.PayerPhone)
	t.Description = strings.TrimSpace(t.Description)
	t.Collector = strings.TrimSpace(t.Collector)
}
