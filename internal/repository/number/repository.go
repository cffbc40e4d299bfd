package number

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/number")

// Store persists allocated numbers.
type Store interface {
	Create(ctx context.Context, number *entity.Number) error
	GetByID(ctx context.Context, id int64) (*entity.Number, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*entity.Number, error)
	CountByOrder(ctx context.Context, orderID int64) (int, error)
	AssignCustomer(ctx context.Context, orderID, customerID int64) (int, error)
	UpdateStatus(ctx context.Context, number *entity.Number) error
	Delete(ctx context.Context, id int64) error
}

// Repository is the bun-backed number store.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a number repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a number; a taken number string yields ErrDuplicate.
func (r *Repository) Create(ctx context.Context, number *entity.Number) error {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.Create", trace.WithAttributes(attribute.Int64("order.id", number.OrderID)))
	defer span.End()

	if _, err := database.Querier(ctx, r.writer).NewInsert().Model(number).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return repository.RecordError(span, err, "insert failed")
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Number, error) {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.GetByID", trace.WithAttributes(attribute.Int64("number.id", id)))
	defer span.End()

	number := new(entity.Number)
	err := database.Querier(ctx, r.reader).NewSelect().Model(number).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return number, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Number, error) {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.ListByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var numbers []*entity.Number
	err := database.Querier(ctx, r.reader).NewSelect().Model(&numbers).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return numbers, nil
}

func (r *Repository) CountByOrder(ctx context.Context, orderID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.CountByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	n, err := database.Querier(ctx, r.reader).NewSelect().Model((*entity.Number)(nil)).
		Where("order_id = ?", orderID).
		Count(ctx)
	if err != nil {
		return 0, repository.RecordError(span, err, "count failed")
	}
	return n, nil
}

// AssignCustomer sets customer_id on every number of the order and returns
// the number of rows touched.
func (r *Repository) AssignCustomer(ctx context.Context, orderID, customerID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.AssignCustomer", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().Model((*entity.Number)(nil)).
		Set("customer_id = ?", customerID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return 0, repository.RecordError(span, err, "update failed")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *Repository) UpdateStatus(ctx context.Context, number *entity.Number) error {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.UpdateStatus", trace.WithAttributes(attribute.Int64("number.id", number.ID)))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().Model(number).
		Column("status", "disconnection_status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "update failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "NumberRepository.Delete", trace.WithAttributes(attribute.Int64("number.id", id)))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewDelete().Model((*entity.Number)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "delete failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
