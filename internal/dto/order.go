package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/dialtone/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID           int64             `json:"id"`
	CustomerID   int64             `json:"customer_id"`
	VendorID     *int64            `json:"vendor_id,omitempty"`
	ProductID    int64             `json:"product_id"`
	CountryID    int64             `json:"country_id"`
	AreaCode     string            `json:"area_code,omitempty"`
	Quantity     int               `json:"quantity"`
	Status       string            `json:"status"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	PricingState string            `json:"pricing_state"`
	Documents    []entity.Document `json:"documents,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	DeliveredAt  *time.Time        `json:"delivered_at,omitempty"`
}

// DocumentRequest is attachment metadata submitted with an order.
type DocumentRequest struct {
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"content_type"`
}

// CreateOrderRequest is one cart line.
type CreateOrderRequest struct {
	CustomerID   int64             `json:"customer_id" validate:"omitempty,gt=0"`
	VendorID     *int64            `json:"vendor_id" validate:"omitempty,gt=0"`
	ProductID    int64             `json:"product_id" validate:"required,gt=0"`
	CountryID    int64             `json:"country_id" validate:"required,gt=0"`
	AreaCode     string            `json:"area_code" validate:"max=16"`
	Quantity     int               `json:"quantity" validate:"required,gte=1"`
	Documents    []DocumentRequest `json:"documents" validate:"dive"`
	Desired      map[string]string `json:"desired_pricing"`
	DesiredTerms TermsRequest      `json:"desired_terms"`
}

// CheckoutRequest submits a whole cart for one customer.
type CheckoutRequest struct {
	CustomerID int64                `json:"customer_id" validate:"required,gt=0"`
	Items      []CreateOrderRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckoutLineResponse reports one created order. PricingError is set when
// the order exists without its desired pricing.
type CheckoutLineResponse struct {
	Order        OrderResponse `json:"order"`
	PricingError string        `json:"pricing_error,omitempty"`
}

// ConfirmOrderRequest optionally carries a current-pricing override.
type ConfirmOrderRequest struct {
	Override map[string]string `json:"override"`
}

// DeliverOrderRequest finalises delivery; Force skips the allocation count.
type DeliverOrderRequest struct {
	Force bool `json:"force"`
}

// ListOrdersQuery filters order listings.
type ListOrdersQuery struct {
	CustomerID int64  `query:"customer_id" validate:"omitempty,gt=0"`
	Status     string `query:"status" validate:"omitempty,oneof='In Progress' Confirmed 'Amount Paid' Delivered Cancelled"`
	Limit      int    `query:"limit" validate:"omitempty,gte=1,lte=200"`
	Offset     int    `query:"offset" validate:"omitempty,gte=0"`
}
