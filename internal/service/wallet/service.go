package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/repository"
	walletrepo "github.com/Additional-Code/dialtone/internal/repository/wallet"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/wallet")

// DebitInput describes a charge against a wallet.
type DebitInput struct {
	UserID        int64
	Amount        decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   string
}

// Service appends to and reads from the per-user wallet ledger.
type Service struct {
	store           walletrepo.Store
	tx              database.Transactor
	locker          lock.Locker
	clock           clock.Clock
	publisher       messaging.Client
	startingBalance decimal.Decimal
	logger          *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      walletrepo.Store
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	Publisher  messaging.Client
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new wallet Service.
func NewService(p Params) *Service {
	return &Service{
		store:           p.Store,
		tx:              p.Transactor,
		locker:          p.Locker,
		clock:           p.Clock,
		publisher:       p.Publisher,
		startingBalance: p.Config.Billing.WalletStartingBalance,
		logger:          p.Logger,
	}
}

// Credit records a top-up.
func (s *Service) Credit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*entity.WalletTransaction, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.Credit", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	txn, err := s.append(ctx, userID, entity.TransactionCredit, amount, description, "", "")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return txn, nil
}

// Debit records a charge. The balance may not go below zero.
//
// When called inside an open unit of work the entry is not announced; the
// caller publishes it with Announce once its own transaction commits.
func (s *Service) Debit(ctx context.Context, in DebitInput) (*entity.WalletTransaction, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.Debit", trace.WithAttributes(attribute.Int64("user.id", in.UserID)))
	defer span.End()

	txn, err := s.append(ctx, in.UserID, entity.TransactionDebit, in.Amount, in.Description, in.ReferenceType, in.ReferenceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return txn, nil
}

// GetBalance returns the latest balance_after, or the starting balance for a
// user without entries.
func (s *Service) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.GetBalance", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if userID <= 0 {
		return decimal.Zero, errorbank.Validation("user_id must be positive")
	}
	latest, err := s.latest(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if latest == nil {
		return s.startingBalance, nil
	}
	return latest.BalanceAfter, nil
}

// EvaluateThreshold reports whether the balance is below threshold.
func (s *Service) EvaluateThreshold(ctx context.Context, userID int64, threshold decimal.Decimal) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.LessThan(threshold), nil
}

// Transactions lists the user's entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID int64, limit int) ([]*entity.WalletTransaction, error) {
	ctx, span := serviceTracer.Start(ctx, "WalletService.Transactions", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	if userID <= 0 {
		return nil, errorbank.Validation("user_id must be positive")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	txns, err := s.store.List(ctx, userID, limit)
	if err != nil {
		return nil, errorbank.Internal("failed to list wallet transactions", errorbank.WithCause(err))
	}
	return txns, nil
}

// Announce publishes a committed ledger entry.
func (s *Service) Announce(ctx context.Context, txn *entity.WalletTransaction) {
	if s.publisher == nil || txn == nil {
		return
	}
	key := fmt.Sprintf("wallet-%d", txn.UserID)
	if err := messaging.PublishEvent(ctx, s.publisher, messaging.EventWalletEntry, key, txn.CreatedAt, txn); err != nil {
		s.logger.Warn("publish wallet transaction failed", zap.Int64("user_id", txn.UserID), zap.Error(err))
	}
}

func (s *Service) append(ctx context.Context, userID int64, kind entity.TransactionType, amount decimal.Decimal, description, refType, refID string) (*entity.WalletTransaction, error) {
	if userID <= 0 {
		return nil, errorbank.Validation("user_id must be positive")
	}
	if !amount.IsPositive() {
		return nil, errorbank.Validation("amount must be greater than zero", errorbank.WithDetail("amount", amount.String()))
	}

	release, err := s.locker.Acquire(ctx, lock.Key("wallet", userID))
	if err != nil {
		return nil, errorbank.Conflict("wallet is being modified", errorbank.WithCause(err))
	}
	defer release()

	nested := database.InTx(ctx)
	var txn *entity.WalletTransaction
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		latest, err := s.latest(ctx, userID)
		if err != nil {
			return err
		}
		before, seq := s.startingBalance, int64(1)
		if latest != nil {
			before, seq = latest.BalanceAfter, latest.Sequence+1
		}

		next := &entity.WalletTransaction{
			UserID:          userID,
			Sequence:        seq,
			TransactionType: kind,
			Amount:          amount,
			BalanceBefore:   before,
			Description:     description,
			ReferenceType:   refType,
			ReferenceID:     refID,
			CreatedAt:       s.clock.Now(),
		}
		next.BalanceAfter = before.Add(next.Signed())
		if next.BalanceAfter.IsNegative() {
			return errorbank.Validation("insufficient wallet balance", errorbank.WithDetails(map[string]any{
				"balance": before.String(),
				"amount":  amount.String(),
			}))
		}

		if err := s.store.Append(ctx, next); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errorbank.Conflict("concurrent wallet update, retry", errorbank.WithDetail("user_id", userID))
			}
			return errorbank.Internal("failed to append wallet transaction", errorbank.WithCause(err))
		}
		txn = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet transaction recorded",
		zap.Int64("user_id", userID),
		zap.String("type", string(kind)),
		zap.String("amount", amount.String()),
		zap.String("balance_after", txn.BalanceAfter.String()),
	)
	if !nested {
		s.Announce(ctx, txn)
	}
	return txn, nil
}

func (s *Service) latest(ctx context.Context, userID int64) (*entity.WalletTransaction, error) {
	latest, err := s.store.Latest(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errorbank.Internal("failed to read wallet balance", errorbank.WithCause(err))
	}
	return latest, nil
}
