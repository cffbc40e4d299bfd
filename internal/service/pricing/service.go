package pricing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/repository"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	pricingrepo "github.com/Additional-Code/dialtone/internal/repository/pricing"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/pricing")

// ProductLookup resolves the product an order was placed for.
type ProductLookup interface {
	Product(ctx context.Context, id int64) (*entity.Product, error)
}

// Pair is the pricing attached to one order. A nil side means no snapshot
// exists, which is distinct from a snapshot of zero rates.
type Pair struct {
	Current *entity.OrderPricing `json:"current,omitempty"`
	Desired *entity.OrderPricing `json:"desired,omitempty"`
}

// UpsertInput is one pricing edit. Fields holds raw, possibly
// currency-formatted, values keyed by rate field name.
type UpsertInput struct {
	OrderID     int64
	PricingType entity.PricingType
	Fields      map[string]string
	Terms       entity.Terms
}

// Service stores and merges the current and desired pricing of orders.
type Service struct {
	store    pricingrepo.Store
	orders   orderrepo.Store
	products ProductLookup
	tx       database.Transactor
	locker   lock.Locker
	clock    clock.Clock
	cache    cache.Store
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      pricingrepo.Store
	Orders     orderrepo.Store
	Products   ProductLookup
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	// Cache holds cached order rows; a desired upsert changes the row's
	// pricing state and evicts it.
	Cache  cache.Store `optional:"true"`
	Logger *zap.Logger
}

// NewService wires a new pricing Service.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		orders:   p.Orders,
		products: p.Products,
		tx:       p.Transactor,
		locker:   p.Locker,
		clock:    p.Clock,
		cache:    p.Cache,
		logger:   p.Logger,
	}
}

// Get returns both pricing rows of an order.
func (s *Service) Get(ctx context.Context, orderID int64) (Pair, error) {
	ctx, span := serviceTracer.Start(ctx, "PricingService.Get", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return Pair{}, err
	}
	var pair Pair
	var err error
	if pair.Current, err = s.find(ctx, orderID, entity.PricingCurrent); err != nil {
		return Pair{}, err
	}
	if pair.Desired, err = s.find(ctx, orderID, entity.PricingDesired); err != nil {
		return Pair{}, err
	}
	return pair, nil
}

// Upsert creates or replaces one pricing row. Desired pricing is editable
// while the order is In Progress; current pricing may be staged as a staff
// override until confirm and is frozen afterwards.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*entity.OrderPricing, error) {
	ctx, span := serviceTracer.Start(ctx, "PricingService.Upsert", trace.WithAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.String("pricing.type", string(in.PricingType)),
	))
	defer span.End()

	if !in.PricingType.Valid() {
		return nil, errorbank.Validation("pricing_type must be current or desired", errorbank.WithDetail("pricing_type", in.PricingType))
	}

	release, err := s.locker.Acquire(ctx, lock.Key("order", in.OrderID))
	if err != nil {
		return nil, errorbank.Conflict("order is being modified", errorbank.WithCause(err))
	}
	defer release()

	var saved *entity.OrderPricing
	stateChanged := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status != entity.OrderStatusInProgress {
			return errorbank.InvalidTransition(
				fmt.Sprintf("%s pricing is read-only once the order is %s", in.PricingType, order.Status),
				errorbank.WithDetail("status", order.Status),
			)
		}
		product, err := s.products.Product(ctx, order.ProductID)
		if err != nil {
			return err
		}

		row, err := s.find(ctx, order.ID, in.PricingType)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if row == nil {
			row = &entity.OrderPricing{OrderID: order.ID, PricingType: in.PricingType, CreatedAt: now}
		}
		row.Rates = entity.RatesFromInput(product.Code, in.Fields)
		row.Terms = in.Terms
		row.UpdatedAt = now

		if err := s.save(ctx, row); err != nil {
			return err
		}
		if in.PricingType == entity.PricingDesired && order.PricingState != entity.PricingStateRecorded {
			if err := s.orders.UpdatePricingState(ctx, order.ID, entity.PricingStateRecorded); err != nil {
				return errorbank.Internal("failed to record pricing state", errorbank.WithCause(err))
			}
			stateChanged = true
		}
		saved = row
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if stateChanged {
		s.evictOrder(ctx, in.OrderID)
	}
	return saved, nil
}

func (s *Service) evictOrder(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, orderrepo.CacheKey(orderID)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

// Freeze computes and stores the current pricing of an order at confirm.
// The caller must hold the order lock and run inside its unit of work.
//
// The snapshot starts from the catalog plan, applies any staged current
// override and the supplied override on top, then fills fields still missing
// from the desired quote. With neither a plan nor an override the quote is
// unavailable.
func (s *Service) Freeze(ctx context.Context, order *entity.Order, product *entity.Product, plan *entity.PricePlan, override map[string]string) (*entity.OrderPricing, error) {
	ctx, span := serviceTracer.Start(ctx, "PricingService.Freeze", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	staged, err := s.find(ctx, order.ID, entity.PricingCurrent)
	if err != nil {
		return nil, err
	}
	desired, err := s.find(ctx, order.ID, entity.PricingDesired)
	if err != nil {
		return nil, err
	}

	overrideRates := entity.RatesFromInput(product.Code, override)
	var terms entity.Terms
	if staged != nil {
		overrideRates = staged.Rates.Relevant(product.Code).Overlay(overrideRates)
		terms = staged.Terms
	}
	if plan == nil && len(overrideRates) == 0 {
		return nil, errorbank.PricingUnavailable("no catalog plan or current pricing override for order",
			errorbank.WithDetails(map[string]any{
				"order_id":   order.ID,
				"product_id": order.ProductID,
				"country_id": order.CountryID,
				"area_code":  order.AreaCode,
			}))
	}

	rates := entity.Rates{}
	if plan != nil {
		rates = plan.Rates.Relevant(product.Code)
		terms = terms.Merge(plan.Terms)
	}
	rates = rates.Overlay(overrideRates)
	if desired != nil {
		rates = rates.FillGaps(desired.Rates.Relevant(product.Code))
		terms = terms.Merge(desired.Terms)
	}

	now := s.clock.Now()
	row := staged
	if row == nil {
		row = &entity.OrderPricing{OrderID: order.ID, PricingType: entity.PricingCurrent, CreatedAt: now}
	}
	row.Rates = rates
	row.Terms = terms
	row.UpdatedAt = now
	if err := s.save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) find(ctx context.Context, orderID int64, pricingType entity.PricingType) (*entity.OrderPricing, error) {
	row, err := s.store.Get(ctx, orderID, pricingType)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load pricing", errorbank.WithCause(err))
	}
	return row, nil
}

func (s *Service) save(ctx context.Context, row *entity.OrderPricing) error {
	if err := s.store.Save(ctx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return errorbank.Conflict("pricing row was created concurrently")
		}
		return errorbank.Internal("failed to save pricing", errorbank.WithCause(err))
	}
	return nil
}
