package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionType distinguishes free trials from paid periods
type SubscriptionType string

const (
	SubTypeFree SubscriptionType = "free"
	SubTypePaid SubscriptionType = "paid"
)

// PaymentPattern is how the period's price is settled
type PaymentPattern string

const (
	PatternFull        PaymentPattern = "full"
	PatternInstallment PaymentPattern = "installment"
)

// Subscription is one billing period for an apartment.
// Invariant: Paid + Remaining = Price.
type Subscription struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	ApartmentID uuid.UUID        `db:"apartment_id" json:"apartment_id"`
	Type        SubscriptionType `db:"type" json:"type"`
	Pattern     PaymentPattern   `db:"pattern" json:"pattern"`
	Price       decimal.Decimal  `db:"price" json:"price"`
	Paid        decimal.Decimal  `db:"paid" json:"paid"`
	Remaining   decimal.Decimal  `db:"remaining" json:"remaining"`
	StartAt     time.Time        `db:"start_at" json:"start_at"`
	EndAt       time.Time        `db:"end_at" json:"end_at"`
	Active      bool             `db:"active" json:"active"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// SubscriptionHistory records one installment payment against a subscription
type SubscriptionHistory struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	SubscriptionID uuid.UUID       `db:"subscription_id" json:"subscription_id"`
	Paid           decimal.Decimal `db:"paid" json:"paid"`
	Note           *string         `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
