package catalog

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

var repoTracer = otel.Tracer("github.com/Additional-Code/dialtone/repository/catalog")

// Store reads products and base price plans.
type Store interface {
	GetProduct(ctx context.Context, id int64) (*entity.Product, error)
	ListProducts(ctx context.Context) ([]*entity.Product, error)
	FindPlan(ctx context.Context, productID, countryID int64, areaCode string) (*entity.PricePlan, error)
}

// Repository is the bun-backed catalog store.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a catalog repository on the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product := new(entity.Product)
	err := database.Querier(ctx, r.reader).NewSelect().Model(product).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return product, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ListProducts")
	defer span.End()

	var products []*entity.Product
	if err := database.Querier(ctx, r.reader).NewSelect().Model(&products).Order("id ASC").Scan(ctx); err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return products, nil
}

// FindPlan returns the plan matching the exact area code.
func (r *Repository) FindPlan(ctx context.Context, productID, countryID int64, areaCode string) (*entity.PricePlan, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.FindPlan", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("country.id", countryID),
		attribute.String("area_code", areaCode),
	))
	defer span.End()

	plan := new(entity.PricePlan)
	err := database.Querier(ctx, r.reader).NewSelect().Model(plan).
		Where("product_id = ?", productID).
		Where("country_id = ?", countryID).
		Where("area_code = ?", areaCode).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, repository.RecordError(span, err, "select failed")
	}
	return plan, nil
}
