package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/repository"
	numberrepo "github.com/Additional-Code/dialtone/internal/repository/number"
	repo "github.com/Additional-Code/dialtone/internal/repository/order"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/internal/service/wallet"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/dialtone/service/order"

var serviceTracer = otel.Tracer(instrumentationName)

// Catalog resolves products and base plans.
type Catalog interface {
	Product(ctx context.Context, id int64) (*entity.Product, error)
	Resolve(ctx context.Context, productID, countryID int64, areaCode string) (*entity.PricePlan, error)
}

// Pricing writes the order's pricing snapshots.
type Pricing interface {
	Upsert(ctx context.Context, in pricing.UpsertInput) (*entity.OrderPricing, error)
	Freeze(ctx context.Context, order *entity.Order, product *entity.Product, plan *entity.PricePlan, override map[string]string) (*entity.OrderPricing, error)
}

// Wallet charges customers for confirmed orders.
type Wallet interface {
	Debit(ctx context.Context, in wallet.DebitInput) (*entity.WalletTransaction, error)
	Announce(ctx context.Context, txn *entity.WalletTransaction)
}

// Service drives the order state machine.
type Service struct {
	repo        repo.Store
	numbers     numberrepo.Store
	catalog     Catalog
	pricing     Pricing
	wallet      Wallet
	tx          database.Transactor
	locker      lock.Locker
	clock       clock.Clock
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	transitions metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository repo.Store
	Numbers    numberrepo.Store
	Catalog    Catalog
	Pricing    Pricing
	Wallet     Wallet
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"dialtone.order.transitions",
		metric.WithDescription("Order lifecycle transitions by target status"),
	)
	if err != nil {
		p.Logger.Warn("order transition counter unavailable", zap.Error(err))
		counter, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("dialtone.order.transitions")
	}
	return &Service{
		repo:        p.Repository,
		numbers:     p.Numbers,
		catalog:     p.Catalog,
		pricing:     p.Pricing,
		wallet:      p.Wallet,
		tx:          p.Transactor,
		locker:      p.Locker,
		clock:       p.Clock,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		logger:      p.Logger,
		publisher:   p.Publisher,
		transitions: counter,
	}
}

// CreateInput is one cart line.
type CreateInput struct {
	CustomerID int64
	VendorID   *int64
	ProductID  int64
	CountryID  int64
	AreaCode   string
	Quantity   int
	Documents  []entity.Document
	// Desired is the customer quote written after the order commits. A nil
	// map means no quote is submitted.
	Desired      map[string]string
	DesiredTerms entity.Terms
}

// CheckoutInput is a customer cart.
type CheckoutInput struct {
	CustomerID int64
	Items      []CreateInput
}

// LineResult is the outcome of one cart line. PricingErr is set when the
// order was created but its desired pricing could not be stored.
type LineResult struct {
	Order      *entity.Order
	PricingErr error
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// List returns orders matching filter.
func (s *Service) List(ctx context.Context, filter repo.Filter) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Create places a single order. A desired-pricing failure does not fail the
// call; the returned order then carries pricing state absent.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	line, err := s.createLine(ctx, in)
	if err != nil {
		return nil, err
	}
	return line.Order, nil
}

// Checkout creates one order per cart line. Lines are independent: a failed
// line stops the checkout, but orders already created stay committed.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) ([]LineResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Checkout", trace.WithAttributes(attribute.Int("cart.items", len(in.Items))))
	defer span.End()

	if len(in.Items) == 0 {
		return nil, errorbank.Validation("cart is empty")
	}
	results := make([]LineResult, 0, len(in.Items))
	for i, item := range in.Items {
		if item.CustomerID == 0 {
			item.CustomerID = in.CustomerID
		}
		line, err := s.createLine(ctx, item)
		if err != nil {
			span.RecordError(err)
			s.logger.Warn("checkout stopped", zap.Int("line", i), zap.Int("created", len(results)), zap.Error(err))
			return results, err
		}
		results = append(results, line)
	}
	return results, nil
}

func (s *Service) createLine(ctx context.Context, in CreateInput) (LineResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("order.customer_id", in.CustomerID),
		attribute.Int64("order.product_id", in.ProductID),
	))
	defer span.End()

	if err := validateCreate(in); err != nil {
		return LineResult{}, err
	}
	if _, err := s.catalog.Product(ctx, in.ProductID); err != nil {
		return LineResult{}, err
	}

	now := s.clock.Now()
	order := &entity.Order{
		CustomerID:   in.CustomerID,
		VendorID:     in.VendorID,
		ProductID:    in.ProductID,
		CountryID:    in.CountryID,
		AreaCode:     in.AreaCode,
		Quantity:     in.Quantity,
		Status:       entity.OrderStatusInProgress,
		TotalAmount:  decimal.Zero,
		PricingState: entity.PricingStateAbsent,
		Documents:    in.Documents,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Desired != nil {
		order.PricingState = entity.PricingStatePending
	}

	// Phase one: the order commits on its own.
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, order)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return LineResult{}, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	s.publish(ctx, messaging.EventOrderCreated, order)

	result := LineResult{Order: order}
	if in.Desired == nil {
		return result, nil
	}

	// Phase two: the desired quote. Failure leaves the order in place.
	if _, err := s.pricing.Upsert(ctx, pricing.UpsertInput{
		OrderID:     order.ID,
		PricingType: entity.PricingDesired,
		Fields:      in.Desired,
		Terms:       in.DesiredTerms,
	}); err != nil {
		s.logger.Warn("desired pricing not stored; order kept without quote",
			zap.Int64("order_id", order.ID), zap.Error(err))
		if stateErr := s.repo.UpdatePricingState(ctx, order.ID, entity.PricingStateAbsent); stateErr != nil {
			s.logger.Warn("pricing state not updated", zap.Int64("order_id", order.ID), zap.Error(stateErr))
		}
		s.invalidate(ctx, order.ID)
		order.PricingState = entity.PricingStateAbsent
		result.PricingErr = err
		return result, nil
	}
	order.PricingState = entity.PricingStateRecorded
	return result, nil
}

func validateCreate(in CreateInput) error {
	details := map[string]any{}
	if in.CustomerID <= 0 {
		details["customer_id"] = "required"
	}
	if in.ProductID <= 0 {
		details["product_id"] = "required"
	}
	if in.CountryID <= 0 {
		details["country_id"] = "required"
	}
	if in.Quantity < 1 {
		details["quantity"] = "must be at least 1"
	}
	if len(details) > 0 {
		return errorbank.Validation("invalid order", errorbank.WithDetails(details))
	}
	return nil
}

// Confirm freezes current pricing and computes the order total.
func (s *Service) Confirm(ctx context.Context, id int64, override map[string]string) (*entity.Order, error) {
	return s.transition(ctx, "OrderService.Confirm", id, entity.OrderStatusConfirmed, func(ctx context.Context, order *entity.Order) error {
		product, err := s.catalog.Product(ctx, order.ProductID)
		if err != nil {
			return err
		}
		plan, err := s.catalog.Resolve(ctx, order.ProductID, order.CountryID, order.AreaCode)
		if err != nil {
			if !errorbank.Is(err, errorbank.KindNotFound) {
				return err
			}
			plan = nil
		}
		current, err := s.pricing.Freeze(ctx, order, product, plan, override)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		order.TotalAmount = OrderTotal(current.Rates, order.Quantity)
		order.ConfirmedAt = &now
		return nil
	})
}

// OrderTotal is the sum of the per-unit rates times quantity, rounded to 4 dp.
func OrderTotal(rates entity.Rates, quantity int) decimal.Decimal {
	return rates.Sum().Mul(decimal.NewFromInt(int64(quantity))).Round(4)
}

// MarkPaid records an out-of-band payment.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*entity.Order, error) {
	return s.transition(ctx, "OrderService.MarkPaid", id, entity.OrderStatusAmountPaid, nil)
}

// PayWithWallet debits the customer's wallet for the order total and marks
// the order paid in the same unit of work.
func (s *Service) PayWithWallet(ctx context.Context, id int64) (*entity.Order, error) {
	var debit *entity.WalletTransaction
	order, err := s.transition(ctx, "OrderService.PayWithWallet", id, entity.OrderStatusAmountPaid, func(ctx context.Context, order *entity.Order) error {
		if !order.TotalAmount.IsPositive() {
			return nil
		}
		txn, err := s.wallet.Debit(ctx, wallet.DebitInput{
			UserID:        order.CustomerID,
			Amount:        order.TotalAmount,
			Description:   fmt.Sprintf("Payment for order #%d", order.ID),
			ReferenceType: "order",
			ReferenceID:   fmt.Sprint(order.ID),
		})
		if err != nil {
			return err
		}
		debit = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.wallet.Announce(ctx, debit)
	return order, nil
}

// MarkDelivered finalises an order. Unless force is set, at least quantity
// numbers must be allocated. Allocated numbers become owned by the customer.
func (s *Service) MarkDelivered(ctx context.Context, id int64, force bool) (*entity.Order, error) {
	return s.transition(ctx, "OrderService.MarkDelivered", id, entity.OrderStatusDelivered, func(ctx context.Context, order *entity.Order) error {
		count, err := s.numbers.CountByOrder(ctx, order.ID)
		if err != nil {
			return errorbank.Internal("failed to count allocated numbers", errorbank.WithCause(err))
		}
		if count < order.Quantity && !force {
			return errorbank.InvalidTransition("not enough numbers allocated", errorbank.WithDetails(map[string]any{
				"allocated": count,
				"quantity":  order.Quantity,
			}))
		}
		if _, err := s.numbers.AssignCustomer(ctx, order.ID, order.CustomerID); err != nil {
			return errorbank.Internal("failed to assign numbers", errorbank.WithCause(err))
		}
		now := s.clock.Now()
		order.DeliveredAt = &now
		if count < order.Quantity {
			s.logger.Info("order delivered by override",
				zap.Int64("order_id", order.ID), zap.Int("allocated", count), zap.Int("quantity", order.Quantity))
		}
		return nil
	})
}

// Cancel ends an order that has not been paid.
func (s *Service) Cancel(ctx context.Context, id int64) (*entity.Order, error) {
	return s.transition(ctx, "OrderService.Cancel", id, entity.OrderStatusCancelled, nil)
}

// transition runs one guarded state change under the order lock and inside
// a single unit of work. apply may mutate non-status fields; returning an
// error aborts without writes.
func (s *Service) transition(ctx context.Context, name string, id int64, to entity.OrderStatus, apply func(context.Context, *entity.Order) error) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	release, err := s.locker.Acquire(ctx, lock.Key("order", id))
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Conflict("order is being modified", errorbank.WithCause(err))
	}
	defer release()

	var updated *entity.Order
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		from := order.Status
		if !entity.CanTransition(from, to) {
			return errorbank.InvalidTransition(
				fmt.Sprintf("cannot move order from %s to %s", from, to),
				errorbank.WithDetails(map[string]any{"order_id": id, "status": from}),
			)
		}
		if apply != nil {
			if err := apply(ctx, order); err != nil {
				return err
			}
		}
		order.Status = to
		order.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateState(ctx, order, from); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return errorbank.Conflict("order changed concurrently, retry", errorbank.WithDetail("order_id", id))
			}
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	s.invalidate(ctx, id)
	s.publish(ctx, eventFor[to], updated)
	return updated, nil
}

var eventFor = map[entity.OrderStatus]string{
	entity.OrderStatusConfirmed:  messaging.EventOrderConfirmed,
	entity.OrderStatusAmountPaid: messaging.EventOrderPaid,
	entity.OrderStatusDelivered:  messaging.EventOrderDelivered,
	entity.OrderStatusCancelled:  messaging.EventOrderCancelled,
}

func (s *Service) load(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", id))
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if s.publisher == nil || eventType == "" {
		return
	}
	event := Event{
		ID:          order.ID,
		CustomerID:  order.CustomerID,
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  order.UpdatedAt,
	}
	if err := messaging.PublishEvent(ctx, s.publisher, eventType, EventKey(order.ID), event.OccurredAt, event); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, repo.CacheKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, repo.CacheKey(order.ID), order, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repo.CacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

// Event is the payload of every order lifecycle message.
type Event struct {
	ID          int64              `json:"id"`
	CustomerID  int64              `json:"customer_id"`
	ProductID   int64              `json:"product_id"`
	Quantity    int                `json:"quantity"`
	Status      entity.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// EventKey is the partition key for an order's messages.
func EventKey(id int64) string {
	return fmt.Sprintf("order-%d", id)
}
