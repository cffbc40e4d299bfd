package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerateInvoiceRequest issues an invoice for one billing period.
type GenerateInvoiceRequest struct {
	Period string `json:"period" validate:"required,datetime=2006-01"`
}

// UpdateUsageRequest replaces an invoice's usage charge.
type UpdateUsageRequest struct {
	UsageAmount decimal.Decimal `json:"usage_amount"`
}

// InvoiceResponse is an invoice.
type InvoiceResponse struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       int64           `json:"order_id"`
	CustomerID    int64           `json:"customer_id"`
	Period        string          `json:"period"`
	FromDate      string          `json:"from_date"`
	ToDate        string          `json:"to_date"`
	Quantity      int             `json:"quantity"`
	MRCAmount     decimal.Decimal `json:"mrc_amount"`
	UsageAmount   decimal.Decimal `json:"usage_amount"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	DueDate       string          `json:"due_date"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
}

// InvoiceRunResponse summarises a batch invoice run.
type InvoiceRunResponse struct {
	Period    string            `json:"period"`
	Generated []InvoiceResponse `json:"generated"`
	Skipped   int               `json:"skipped"`
	Failed    map[int64]string  `json:"failed,omitempty"`
}

// CreditRequest tops up a wallet.
type CreditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

// WalletTransactionResponse is one ledger entry.
type WalletTransactionResponse struct {
	ID              int64           `json:"id"`
	Sequence        int64           `json:"sequence"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Description     string          `json:"description,omitempty"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BalanceResponse reports a wallet balance and, when asked, whether it is low.
type BalanceResponse struct {
	UserID    int64            `json:"user_id"`
	Balance   decimal.Decimal  `json:"balance"`
	Threshold *decimal.Decimal `json:"threshold,omitempty"`
	Low       *bool            `json:"low,omitempty"`
}
