package disconnection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/migration"
	"github.com/Additional-Code/dialtone/internal/repository"
	disconnectionrepo "github.com/Additional-Code/dialtone/internal/repository/disconnection"
	"github.com/Additional-Code/dialtone/internal/testutil"
)

func newRepo(t *testing.T) *disconnectionrepo.Repository {
	t.Helper()
	conns := testutil.SQLite(t)
	var cfg config.Config
	cfg.Database.Driver = "sqlite"
	m, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))
	return disconnectionrepo.NewRepository(conns)
}

func pendingRequest(numberID int64) *entity.DisconnectionRequest {
	return &entity.DisconnectionRequest{
		NumberID:    numberID,
		CustomerID:  21,
		Status:      entity.DisconnectionPending,
		RequestedAt: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestCreateRejectsSecondPendingRequest(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	first := pendingRequest(7)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, pendingRequest(7))
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, repo.Create(ctx, pendingRequest(8)), "other numbers are unaffected")

	decided := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	first.Status = entity.DisconnectionRejected
	first.DecidedAt = &decided
	require.NoError(t, repo.Decide(ctx, first))
	require.NoError(t, repo.Create(ctx, pendingRequest(7)), "a decided request frees the number")
}
