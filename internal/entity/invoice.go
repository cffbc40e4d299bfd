package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// InvoiceStatus is driven by dates and payments outside the invoice engine.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOverdue InvoiceStatus = "Overdue"
)

// Invoice is a periodic bill for one order.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices"`

	ID            int64           `bun:",pk,autoincrement" json:"id"`
	InvoiceNumber string          `bun:"invoice_number,notnull,unique" json:"invoice_number"`
	OrderID       int64           `bun:"order_id,notnull,unique:invoice_order_period" json:"order_id"`
	CustomerID    int64           `bun:"customer_id,notnull" json:"customer_id"`
	Period        string          `bun:"period,notnull,unique:invoice_order_period" json:"period"`
	FromDate      time.Time       `bun:"from_date,notnull" json:"from_date"`
	ToDate        time.Time       `bun:"to_date,notnull" json:"to_date"`
	Quantity      int             `bun:"quantity,notnull" json:"quantity"`
	MRCAmount     decimal.Decimal `bun:"mrc_amount,type:numeric(18,4),notnull" json:"mrc_amount"`
	UsageAmount   decimal.Decimal `bun:"usage_amount,type:numeric(18,4),notnull" json:"usage_amount"`
	Amount        decimal.Decimal `bun:"amount,type:numeric(18,4),notnull" json:"amount"`
	Status        InvoiceStatus   `bun:"status,notnull" json:"status"`
	DueDate       time.Time       `bun:"due_date,notnull" json:"due_date"`
	PaidDate      *time.Time      `bun:"paid_date" json:"paid_date,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// InvoiceAmount is mrc × quantity + usage.
func InvoiceAmount(mrc decimal.Decimal, quantity int, usage decimal.Decimal) decimal.Decimal {
	return mrc.Mul(decimal.NewFromInt(int64(quantity))).Add(usage)
}

// SetUsage replaces the usage amount and re-derives Amount.
func (i *Invoice) SetUsage(usage decimal.Decimal) {
	i.UsageAmount = usage
	i.Amount = InvoiceAmount(i.MRCAmount, i.Quantity, usage)
}
