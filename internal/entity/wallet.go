package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TransactionType is the direction of a wallet ledger entry.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// WalletTransaction is one append-only ledger entry. Sequence is 1-based and
// contiguous per user.
type WalletTransaction struct {
	bun.BaseModel `bun:"table:wallet_transactions"`

	ID              int64           `bun:",pk,autoincrement" json:"id"`
	UserID          int64           `bun:"user_id,notnull,unique:wallet_user_sequence" json:"user_id"`
	Sequence        int64           `bun:"sequence,notnull,unique:wallet_user_sequence" json:"sequence"`
	TransactionType TransactionType `bun:"transaction_type,notnull" json:"transaction_type"`
	Amount          decimal.Decimal `bun:"amount,type:numeric(18,4),notnull" json:"amount"`
	BalanceBefore   decimal.Decimal `bun:"balance_before,type:numeric(18,4),notnull" json:"balance_before"`
	BalanceAfter    decimal.Decimal `bun:"balance_after,type:numeric(18,4),notnull" json:"balance_after"`
	Description     string          `bun:"description" json:"description"`
	ReferenceType   string          `bun:"reference_type,nullzero" json:"reference_type,omitempty"`
	ReferenceID     string          `bun:"reference_id,nullzero" json:"reference_id,omitempty"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t *WalletTransaction) Signed() decimal.Decimal {
	if t.TransactionType == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
