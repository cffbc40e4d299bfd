package entity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// NumberStatus is the service state of an allocated number.
type NumberStatus string

const (
	NumberActive       NumberStatus = "Active"
	NumberInactive     NumberStatus = "Inactive"
	NumberDisconnected NumberStatus = "Disconnected"
)

// DisconnectionStatus mirrors the latest disconnection round on a number.
type DisconnectionStatus string

const (
	DisconnectionPending   DisconnectionStatus = "Pending"
	DisconnectionApproved  DisconnectionStatus = "Approved"
	DisconnectionRejected  DisconnectionStatus = "Rejected"
	DisconnectionCompleted DisconnectionStatus = "Completed"
)

// Number is a concrete phone number allocated against an order.
type Number struct {
	bun.BaseModel `bun:"table:numbers"`

	ID                  int64               `bun:",pk,autoincrement" json:"id"`
	OrderID             int64               `bun:"order_id,notnull" json:"order_id"`
	CustomerID          *int64              `bun:"customer_id" json:"customer_id,omitempty"`
	CountryID           int64               `bun:"country_id,notnull" json:"country_id"`
	ProductID           int64               `bun:"product_id,notnull" json:"product_id"`
	AreaCode            string              `bun:"area_code" json:"area_code"`
	Number              string              `bun:"number,notnull,unique" json:"number"`
	Status              NumberStatus        `bun:"status,notnull" json:"status"`
	DisconnectionStatus DisconnectionStatus `bun:"disconnection_status,nullzero" json:"disconnection_status,omitempty"`
	CreatedAt           time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time           `bun:"updated_at,nullzero" json:"updated_at"`
}

// NormalizeNumber strips formatting characters from a dialable number.
func NormalizeNumber(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
}

// DisconnectionRequest asks for an active number to be detached from service.
type DisconnectionRequest struct {
	bun.BaseModel `bun:"table:disconnection_requests"`

	ID          int64               `bun:",pk,autoincrement" json:"id"`
	NumberID    int64               `bun:"number_id,notnull" json:"number_id"`
	CustomerID  int64               `bun:"customer_id,notnull" json:"customer_id"`
	Status      DisconnectionStatus `bun:"status,notnull" json:"status"`
	Notes       string              `bun:"notes" json:"notes,omitempty"`
	RequestedAt time.Time           `bun:"requested_at,notnull" json:"requested_at"`
	DecidedAt   *time.Time          `bun:"decided_at" json:"decided_at,omitempty"`
}
