package wallet

import (
	"context"
	"encoding/json"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/worker"
)

// Module registers wallet worker handlers.
var Module = fx.Module("worker_wallet",
	fx.Provide(
		fx.Annotate(
			NewLowBalanceHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLowBalanceHandler warns when a ledger entry leaves a wallet below the
// configured threshold.
func NewLowBalanceHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	threshold := cfg.Billing.LowBalanceThreshold
	handler := func(_ context.Context, ev messaging.Event) error {
		var txn entity.WalletTransaction
		if err := json.Unmarshal(ev.Payload, &txn); err != nil {
			logger.Error("failed to decode wallet transaction", zap.Error(err))
			return nil
		}
		if !txn.BalanceAfter.LessThan(threshold) {
			return nil
		}
		logger.Warn("wallet balance below threshold",
			zap.Int64("user_id", txn.UserID),
			zap.String("balance", txn.BalanceAfter.String()),
			zap.String("threshold", threshold.String()),
			zap.String("transaction_type", string(txn.TransactionType)),
		)
		return nil
	}

	return worker.HandlerRegistration{
		EventType: messaging.EventWalletEntry,
		Handler:   handler,
	}
}
