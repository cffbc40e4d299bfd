package number

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/repository"
	numberrepo "github.com/Additional-Code/dialtone/internal/repository/number"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/number")

// Service assigns phone numbers to paid orders.
type Service struct {
	store  numberrepo.Store
	orders orderrepo.Store
	tx     database.Transactor
	locker lock.Locker
	clock  clock.Clock
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      numberrepo.Store
	Orders     orderrepo.Store
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewService wires a new number Service.
func NewService(p Params) *Service {
	return &Service{
		store:  p.Store,
		orders: p.Orders,
		tx:     p.Transactor,
		locker: p.Locker,
		clock:  p.Clock,
		logger: p.Logger,
	}
}

// Allocate attaches a number to an order in Amount Paid. The number stays
// without a customer until the order is delivered.
func (s *Service) Allocate(ctx context.Context, orderID int64, raw string) (*entity.Number, error) {
	ctx, span := serviceTracer.Start(ctx, "NumberService.Allocate", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	value := entity.NormalizeNumber(raw)
	if value == "" {
		return nil, errorbank.Validation("number is required")
	}

	release, err := s.locker.Acquire(ctx, lock.Key("order", orderID))
	if err != nil {
		return nil, errorbank.Conflict("order is being modified", errorbank.WithCause(err))
	}
	defer release()

	var created *entity.Number
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.paidOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		number := &entity.Number{
			OrderID:   order.ID,
			CountryID: order.CountryID,
			ProductID: order.ProductID,
			AreaCode:  order.AreaCode,
			Number:    value,
			Status:    entity.NumberActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.Create(ctx, number); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errorbank.Conflict("number already allocated", errorbank.WithDetail("number", value))
			}
			return errorbank.Internal("failed to allocate number", errorbank.WithCause(err))
		}
		created = number
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("number allocated", zap.Int64("order_id", orderID), zap.String("number", value))
	return created, nil
}

// Release removes an allocation while its order is still in Amount Paid.
func (s *Service) Release(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "NumberService.Release", trace.WithAttributes(attribute.Int64("number.id", id)))
	defer span.End()

	number, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.Key("order", number.OrderID))
	if err != nil {
		return errorbank.Conflict("order is being modified", errorbank.WithCause(err))
	}
	defer release()

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.paidOrder(ctx, number.OrderID); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errorbank.NotFound("number not found", errorbank.WithDetail("number_id", id))
			}
			return errorbank.Internal("failed to release number", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("number released", zap.Int64("order_id", number.OrderID), zap.String("number", number.Number))
	return nil
}

// Get returns a number by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Number, error) {
	number, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("number not found", errorbank.WithDetail("number_id", id))
		}
		return nil, errorbank.Internal("failed to load number", errorbank.WithCause(err))
	}
	return number, nil
}

// ListByOrder returns the numbers allocated against an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Number, error) {
	numbers, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list numbers", errorbank.WithCause(err))
	}
	return numbers, nil
}

func (s *Service) paidOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("order_id", orderID))
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.Status != entity.OrderStatusAmountPaid {
		return nil, errorbank.InvalidTransition("numbers can only change while the order is Amount Paid",
			errorbank.WithDetails(map[string]any{"order_id": orderID, "status": order.Status}))
	}
	return order, nil
}
