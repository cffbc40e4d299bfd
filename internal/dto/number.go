package dto

import "time"

// AllocateNumberRequest assigns a phone number to a paid order.
type AllocateNumberRequest struct {
	Number string `json:"number" validate:"required,max=32"`
}

// NumberResponse is an allocated number.
type NumberResponse struct {
	ID                  int64     `json:"id"`
	OrderID             int64     `json:"order_id"`
	CustomerID          *int64    `json:"customer_id,omitempty"`
	Number              string    `json:"number"`
	Status              string    `json:"status"`
	DisconnectionStatus string    `json:"disconnection_status,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// DisconnectionCreateRequest opens a disconnection request.
type DisconnectionCreateRequest struct {
	NumberID   int64  `json:"number_id" validate:"required,gt=0"`
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Notes      string `json:"notes" validate:"max=1000"`
}

// DisconnectionDecisionRequest carries staff notes on a decision.
type DisconnectionDecisionRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// DisconnectionResponse is a disconnection request.
type DisconnectionResponse struct {
	ID          int64      `json:"id"`
	NumberID    int64      `json:"number_id"`
	CustomerID  int64      `json:"customer_id"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}
