package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/wallet")

// Store is the append-only wallet ledger.
type Store interface {
	Latest(ctx context.Context, userID int64) (*entity.WalletTransaction, error)
	Append(ctx context.Context, txn *entity.WalletTransaction) error
	List(ctx context.Context, userID int64, limit int) ([]*entity.WalletTransaction, error)
}

// Repository is the bun-backed ledger.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a wallet ledger repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Latest returns the user's most recent entry. Reads go to the writer so a
// lagging replica never yields a stale balance.
func (r *Repository) Latest(ctx context.Context, userID int64) (*entity.WalletTransaction, error) {
	ctx, span := repoTracer.Start(ctx, "WalletRepository.Latest", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	txn := new(entity.WalletTransaction)
	err := database.Querier(ctx, r.writer).NewSelect().Model(txn).
		Where("user_id = ?", userID).
		Order("sequence DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return txn, nil
}

// Append inserts a ledger entry. A sequence already taken for the user
// yields ErrDuplicate.
func (r *Repository) Append(ctx context.Context, txn *entity.WalletTransaction) error {
	ctx, span := repoTracer.Start(ctx, "WalletRepository.Append", trace.WithAttributes(
		attribute.Int64("user.id", txn.UserID),
		attribute.Int64("wallet.sequence", txn.Sequence),
	))
	defer span.End()

	if _, err := database.Querier(ctx, r.writer).NewInsert().Model(txn).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return repository.RecordError(span, err, "insert failed")
	}
	return nil
}

func (r *Repository) List(ctx context.Context, userID int64, limit int) ([]*entity.WalletTransaction, error) {
	ctx, span := repoTracer.Start(ctx, "WalletRepository.List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var txns []*entity.WalletTransaction
	q := database.Querier(ctx, r.reader).NewSelect().Model(&txns).
		Where("user_id = ?", userID).
		Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return txns, nil
}
