package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/order")

// CacheKey is the key an order row is cached under. Any writer of the row
// must delete it after commit.
func CacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

// Filter narrows order listings. Zero values are ignored.
type Filter struct {
	CustomerID int64
	Status     entity.OrderStatus
	Limit      int
	Offset     int
}

// Store is the persistence contract the order services depend on.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, filter Filter) ([]*entity.Order, error)
	UpdateState(ctx context.Context, order *entity.Order, from entity.OrderStatus) error
	UpdatePricingState(ctx context.Context, id int64, state entity.PricingState) error
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("order.customer_id", order.CustomerID)))
	defer span.End()

	_, err := database.Querier(ctx, r.writer).NewInsert().Model(order).Exec(ctx)
	return repository.RecordError(span, err, "insert failed")
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := database.Querier(ctx, r.reader).NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return order, nil
}

// List returns orders newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []*entity.Order
	q := database.Querier(ctx, r.reader).NewSelect().Model(&orders).Order("id DESC")
	if filter.CustomerID > 0 {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return orders, nil
}

// UpdateState writes the lifecycle columns only if the stored status still
// equals from.
func (r *Repository) UpdateState(ctx context.Context, order *entity.Order, from entity.OrderStatus) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateState", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.from", string(from)),
		attribute.String("order.to", string(order.Status)),
	))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().
		Model(order).
		Column("status", "total_amount", "updated_at", "confirmed_at", "delivered_at").
		Where("id = ?", order.ID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "update failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// UpdatePricingState records the outcome of the desired-pricing write.
func (r *Repository) UpdatePricingState(ctx context.Context, id int64, state entity.PricingState) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdatePricingState", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := database.Querier(ctx, r.writer).NewUpdate().
		Model((*entity.Order)(nil)).
		Set("pricing_state = ?", state).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return repository.RecordError(span, err, "update failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
