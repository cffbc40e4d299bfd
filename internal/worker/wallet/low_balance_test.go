package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/messaging"
)

func TestLowBalanceHandlerWarnsBelowThreshold(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := config.Config{Billing: config.Billing{LowBalanceThreshold: decimal.NewFromInt(10)}}
	reg := NewLowBalanceHandler(zap.New(core), cfg)

	for _, balance := range []int64{25, 10, 4} {
		body, err := json.Marshal(entity.WalletTransaction{UserID: 3, BalanceAfter: decimal.NewFromInt(balance)})
		require.NoError(t, err)
		require.NoError(t, reg.Handler(context.Background(), messaging.Event{Type: messaging.EventWalletEntry, Payload: body}))
	}

	entries := logs.FilterMessage("wallet balance below threshold").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "4", entries[0].ContextMap()["balance"])
}
