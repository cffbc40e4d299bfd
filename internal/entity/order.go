package entity

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "In Progress"
	OrderStatusConfirmed  OrderStatus = "Confirmed"
	OrderStatusAmountPaid OrderStatus = "Amount Paid"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusInProgress: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusAmountPaid, OrderStatusCancelled},
	OrderStatusAmountPaid: {OrderStatusDelivered},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// PricingState tracks the optional desired-pricing write that follows order
// creation. An order in PricingStateAbsent has no desired snapshot; consumers
// must not read that as zero cost.
type PricingState string

const (
	PricingStatePending  PricingState = "pending"
	PricingStateRecorded PricingState = "recorded"
	PricingStateAbsent   PricingState = "absent"
)

// Document is opaque attachment metadata carried on an order.
type Document struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Order is one provisioning request for a quantity of numbers of a product.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID           int64           `bun:",pk,autoincrement" json:"id"`
	CustomerID   int64           `bun:"customer_id,notnull" json:"customer_id"`
	VendorID     *int64          `bun:"vendor_id" json:"vendor_id,omitempty"`
	ProductID    int64           `bun:"product_id,notnull" json:"product_id"`
	CountryID    int64           `bun:"country_id,notnull" json:"country_id"`
	AreaCode     string          `bun:"area_code" json:"area_code"`
	Quantity     int             `bun:"quantity,notnull" json:"quantity"`
	Status       OrderStatus     `bun:"status,notnull" json:"status"`
	TotalAmount  decimal.Decimal `bun:"total_amount,type:numeric(18,4),notnull" json:"total_amount"`
	PricingState PricingState    `bun:"pricing_state,notnull" json:"pricing_state"`
	Documents    []Document      `bun:"documents,type:jsonb" json:"documents,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
	ConfirmedAt  *time.Time      `bun:"confirmed_at" json:"confirmed_at,omitempty"`
	DeliveredAt  *time.Time      `bun:"delivered_at" json:"delivered_at,omitempty"`
}

// Terminal reports whether no further transitions are possible.
func (o *Order) Terminal() bool {
	return len(orderTransitions[o.Status]) == 0
}
