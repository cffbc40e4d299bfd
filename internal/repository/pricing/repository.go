package pricing

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

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/pricing")

// Store persists order pricing snapshots.
type Store interface {
	Get(ctx context.Context, orderID int64, pricingType entity.PricingType) (*entity.OrderPricing, error)
	Save(ctx context.Context, pricing *entity.OrderPricing) error
}

// Repository is the bun-backed pricing snapshot store.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a pricing repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

func (r *Repository) Get(ctx context.Context, orderID int64, pricingType entity.PricingType) (*entity.OrderPricing, error) {
	ctx, span := repoTracer.Start(ctx, "PricingRepository.Get", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("pricing.type", string(pricingType)),
	))
	defer span.End()

	row := new(entity.OrderPricing)
	err := database.Querier(ctx, r.reader).NewSelect().Model(row).
		Where("order_id = ?", orderID).
		Where("pricing_type = ?", pricingType).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return row, nil
}

// Save inserts the row when ID is zero and updates it in place otherwise.
func (r *Repository) Save(ctx context.Context, pricing *entity.OrderPricing) error {
	ctx, span := repoTracer.Start(ctx, "PricingRepository.Save", trace.WithAttributes(
		attribute.Int64("order.id", pricing.OrderID),
		attribute.String("pricing.type", string(pricing.PricingType)),
	))
	defer span.End()

	db := database.Querier(ctx, r.writer)
	if pricing.ID == 0 {
		if _, err := db.NewInsert().Model(pricing).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return repository.RecordError(span, err, "insert failed")
		}
		return nil
	}

	_, err := db.NewUpdate().Model(pricing).
		Column("rates", "billing_pulse", "estimated_lead_time", "contract_term", "disconnection_notice_term", "updated_at").
		WherePK().
		Exec(ctx)
	return repository.RecordError(span, err, "update failed")
}
