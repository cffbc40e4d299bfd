package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PricingType distinguishes the vendor-facing and customer-facing snapshot.
type PricingType string

const (
	PricingCurrent PricingType = "current"
	PricingDesired PricingType = "desired"
)

// Valid reports whether t is a known pricing type.
func (t PricingType) Valid() bool {
	return t == PricingCurrent || t == PricingDesired
}

// Terms are the non-rate attributes of a pricing row. Empty values are not stored.
type Terms struct {
	BillingPulse            string `bun:"billing_pulse,nullzero" json:"billing_pulse,omitempty"`
	EstimatedLeadTime       string `bun:"estimated_lead_time,nullzero" json:"estimated_lead_time,omitempty"`
	ContractTerm            string `bun:"contract_term,nullzero" json:"contract_term,omitempty"`
	DisconnectionNoticeTerm string `bun:"disconnection_notice_term,nullzero" json:"disconnection_notice_term,omitempty"`
}

// Merge returns t with empty fields filled from other.
func (t Terms) Merge(other Terms) Terms {
	if t.BillingPulse == "" {
		t.BillingPulse = other.BillingPulse
	}
	if t.EstimatedLeadTime == "" {
		t.EstimatedLeadTime = other.EstimatedLeadTime
	}
	if t.ContractTerm == "" {
		t.ContractTerm = other.ContractTerm
	}
	if t.DisconnectionNoticeTerm == "" {
		t.DisconnectionNoticeTerm = other.DisconnectionNoticeTerm
	}
	return t
}

// OrderPricing is one pricing snapshot row, keyed by (OrderID, PricingType).
type OrderPricing struct {
	bun.BaseModel `bun:"table:order_pricings"`

	ID          int64       `bun:",pk,autoincrement" json:"id"`
	OrderID     int64       `bun:"order_id,notnull,unique:order_pricing_type" json:"order_id"`
	PricingType PricingType `bun:"pricing_type,notnull,unique:order_pricing_type" json:"pricing_type"`
	Rates       Rates       `bun:"rates,type:jsonb" json:"rates"`
	Terms
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
