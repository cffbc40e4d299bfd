package dto

import (
	"time"

	"github.com/Additional-Code/dialtone/internal/entity"
)

// TermsRequest carries the free-form pricing terms.
type TermsRequest struct {
	BillingPulse            string `json:"billing_pulse" validate:"max=64"`
	EstimatedLeadTime       string `json:"estimated_lead_time" validate:"max=64"`
	ContractTerm            string `json:"contract_term" validate:"max=64"`
	DisconnectionNoticeTerm string `json:"disconnection_notice_term" validate:"max=64"`
}

// Terms converts the request into entity terms.
func (t TermsRequest) Terms() entity.Terms {
	return entity.Terms{
		BillingPulse:            t.BillingPulse,
		EstimatedLeadTime:       t.EstimatedLeadTime,
		ContractTerm:            t.ContractTerm,
		DisconnectionNoticeTerm: t.DisconnectionNoticeTerm,
	}
}

// UpsertPricingRequest replaces one pricing row of an order. Values may be
// currency formatted, e.g. "$1,250.00".
type UpsertPricingRequest struct {
	Fields map[string]string `json:"fields" validate:"required"`
	TermsRequest
}

// PricingResponse is one pricing snapshot.
type PricingResponse struct {
	PricingType string       `json:"pricing_type"`
	Rates       entity.Rates `json:"rates"`
	entity.Terms
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderPricingResponse holds both snapshots; a missing side is omitted.
type OrderPricingResponse struct {
	OrderID int64            `json:"order_id"`
	Current *PricingResponse `json:"current,omitempty"`
	Desired *PricingResponse `json:"desired,omitempty"`
}

// PricePlanResponse is a resolved catalog plan.
type PricePlanResponse struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	CountryID int64        `json:"country_id"`
	AreaCode  string       `json:"area_code,omitempty"`
	Rates     entity.Rates `json:"rates"`
	entity.Terms
}

// ResolvePlanQuery selects a catalog plan.
type ResolvePlanQuery struct {
	ProductID int64  `query:"product_id" validate:"required,gt=0"`
	CountryID int64  `query:"country_id" validate:"required,gt=0"`
	AreaCode  string `query:"area_code"`
}
