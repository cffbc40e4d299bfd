package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
	catalogrepo "github.com/Additional-Code/dialtone/internal/repository/catalog"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/catalog")

// Service resolves products and base price plans. It never mutates state.
type Service struct {
	store    catalogrepo.Store
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  catalogrepo.Store
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new catalog Service.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// Product returns the product with the given id.
func (s *Service) Product(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Product", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	key := fmt.Sprintf("catalog:product:%d", id)
	var product entity.Product
	if s.readCache(ctx, key, &product) {
		return &product, nil
	}

	found, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("product not found", errorbank.WithDetail("product_id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	s.writeCache(ctx, key, found)
	return found, nil
}

// Products lists the whole product catalog.
func (s *Service) Products(ctx context.Context) ([]*entity.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to list products", errorbank.WithCause(err))
	}
	return products, nil
}

// Resolve finds the base plan for a product in a country. An area-code
// specific plan wins; otherwise the country-wide plan applies. A miss is
// reported as not_found and means "quote unavailable".
func (s *Service) Resolve(ctx context.Context, productID, countryID int64, areaCode string) (*entity.PricePlan, error) {
	areaCode = strings.TrimSpace(areaCode)
	ctx, span := serviceTracer.Start(ctx, "CatalogService.Resolve", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("country.id", countryID),
		attribute.String("area_code", areaCode),
	))
	defer span.End()

	if productID <= 0 || countryID <= 0 {
		return nil, errorbank.Validation("product_id and country_id are required")
	}

	key := fmt.Sprintf("catalog:plan:%d:%d:%s", productID, countryID, areaCode)
	var cached entity.PricePlan
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	candidates := []string{areaCode}
	if areaCode != "" {
		candidates = append(candidates, "")
	}
	for _, candidate := range candidates {
		plan, err := s.store.FindPlan(ctx, productID, countryID, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to resolve price plan", errorbank.WithCause(err))
		}
		s.writeCache(ctx, key, plan)
		return plan, nil
	}

	return nil, errorbank.NotFound("no price plan for product and country", errorbank.WithDetails(map[string]any{
		"product_id": productID,
		"country_id": countryID,
		"area_code":  areaCode,
	}))
}

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	err := cache.GetJSON(ctx, s.cache, key, dst)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
