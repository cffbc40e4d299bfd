package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/repository"
	invoicerepo "github.com/Additional-Code/dialtone/internal/repository/invoice"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	pricingrepo "github.com/Additional-Code/dialtone/internal/repository/pricing"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

// PeriodLayout is the billing period format, e.g. 2026-09.
const PeriodLayout = "2006-01"

const batchSize = 200

var serviceTracer = otel.Tracer("github.com/Additional-Code/dialtone/service/invoice")

// RunSummary reports a batch invoice run.
type RunSummary struct {
	Period    string            `json:"period"`
	Generated []*entity.Invoice `json:"generated"`
	Skipped   int               `json:"skipped"`
	Failed    map[int64]string  `json:"failed,omitempty"`
}

// Service generates invoices from frozen order pricing.
type Service struct {
	store     invoicerepo.Store
	orders    orderrepo.Store
	pricing   pricingrepo.Store
	tx        database.Transactor
	locker    lock.Locker
	clock     clock.Clock
	publisher messaging.Client
	netDays   int
	logger    *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store      invoicerepo.Store
	Orders     orderrepo.Store
	Pricing    pricingrepo.Store
	Transactor database.Transactor
	Locker     lock.Locker
	Clock      clock.Clock
	Publisher  messaging.Client
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new invoice Service.
func NewService(p Params) *Service {
	return &Service{
		store:     p.Store,
		orders:    p.Orders,
		pricing:   p.Pricing,
		tx:        p.Transactor,
		locker:    p.Locker,
		clock:     p.Clock,
		publisher: p.Publisher,
		netDays:   p.Config.Billing.InvoiceNetDays,
		logger:    p.Logger,
	}
}

// ParsePeriod validates a YYYY-MM period and returns its first instant.
func ParsePeriod(period string) (time.Time, error) {
	start, err := time.ParseInLocation(PeriodLayout, period, time.UTC)
	if err != nil {
		return time.Time{}, errorbank.Validation("period must be formatted as YYYY-MM", errorbank.WithDetail("period", period))
	}
	return start, nil
}

// Generate issues the invoice of a delivered order for one period.
func (s *Service) Generate(ctx context.Context, orderID int64, period string) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.Generate", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("invoice.period", period),
	))
	defer span.End()

	from, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.Key("order", orderID))
	if err != nil {
		return nil, errorbank.Conflict("order is being modified", errorbank.WithCause(err))
	}
	defer release()

	var created *entity.Invoice
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errorbank.NotFound("order not found", errorbank.WithDetail("order_id", orderID))
			}
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		if order.Status != entity.OrderStatusDelivered {
			return errorbank.InvalidTransition("only delivered orders are invoiced",
				errorbank.WithDetails(map[string]any{"order_id": orderID, "status": order.Status}))
		}

		current, err := s.pricing.Get(ctx, orderID, entity.PricingCurrent)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errorbank.PricingUnavailable("order has no current pricing", errorbank.WithDetail("order_id", orderID))
			}
			return errorbank.Internal("failed to load pricing", errorbank.WithCause(err))
		}

		if _, err := s.store.GetByOrderPeriod(ctx, orderID, period); err == nil {
			return alreadyInvoiced(orderID, period)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return errorbank.Internal("failed to check existing invoice", errorbank.WithCause(err))
		}

		mrc, _ := current.Rates.Get(entity.RateMRC)
		to := from.AddDate(0, 1, -1)
		now := s.clock.Now()
		inv := &entity.Invoice{
			InvoiceNumber: InvoiceNumber(from),
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			Period:        period,
			FromDate:      from,
			ToDate:        to,
			Quantity:      order.Quantity,
			MRCAmount:     mrc,
			Status:        entity.InvoicePending,
			DueDate:       to.AddDate(0, 0, s.netDays),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		inv.SetUsage(decimal.Zero)

		if err := s.store.Create(ctx, inv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return alreadyInvoiced(orderID, period)
			}
			return errorbank.Internal("failed to create invoice", errorbank.WithCause(err))
		}
		created = inv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := messaging.PublishEvent(ctx, s.publisher, messaging.EventInvoiceGenerated,
		fmt.Sprintf("order-%d", orderID), created.CreatedAt, created); err != nil {
		s.logger.Warn("publish invoice generated failed", zap.Int64("invoice_id", created.ID), zap.Error(err))
	}
	return created, nil
}

// ErrAlreadyInvoiced is the cause of the conflict Generate returns when the
// order already has an invoice for the period.
var ErrAlreadyInvoiced = errors.New("invoice already generated for period")

func alreadyInvoiced(orderID int64, period string) error {
	return errorbank.Conflict("order already invoiced for period",
		errorbank.WithDetails(map[string]any{"order_id": orderID, "period": period}),
		errorbank.WithCause(ErrAlreadyInvoiced))
}

// InvoiceNumber builds INV-YYYYMM-<ULID> for a period start.
func InvoiceNumber(periodStart time.Time) string {
	return fmt.Sprintf("INV-%s-%s", periodStart.Format("200601"), ulid.Make())
}

// UpdateUsage replaces the usage charge and re-derives the amount.
func (s *Service) UpdateUsage(ctx context.Context, id int64, usage decimal.Decimal) (*entity.Invoice, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.UpdateUsage", trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	if usage.IsNegative() {
		return nil, errorbank.Validation("usage_amount must not be negative", errorbank.WithDetail("usage_amount", usage.String()))
	}

	release, err := s.locker.Acquire(ctx, lock.Key("invoice", id))
	if err != nil {
		return nil, errorbank.Conflict("invoice is being modified", errorbank.WithCause(err))
	}
	defer release()

	var updated *entity.Invoice
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		inv.SetUsage(usage)
		inv.UpdatedAt = s.clock.Now()
		if err := s.store.UpdateAmounts(ctx, inv); err != nil {
			return errorbank.Internal("failed to update invoice", errorbank.WithCause(err))
		}
		updated = inv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return updated, nil
}

// GenerateForPeriod invoices every delivered order for period. Orders already
// invoiced are skipped. Other failures, a busy order lock included, are
// collected and do not stop the run.
func (s *Service) GenerateForPeriod(ctx context.Context, period string) (*RunSummary, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.GenerateForPeriod", trace.WithAttributes(attribute.String("invoice.period", period)))
	defer span.End()

	if _, err := ParsePeriod(period); err != nil {
		return nil, err
	}

	summary := &RunSummary{Period: period, Failed: map[int64]string{}}
	for offset := 0; ; offset += batchSize {
		orders, err := s.orders.List(ctx, orderrepo.Filter{Status: entity.OrderStatusDelivered, Limit: batchSize, Offset: offset})
		if err != nil {
			return summary, errorbank.Internal("failed to list delivered orders", errorbank.WithCause(err))
		}
		for _, order := range orders {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			inv, err := s.Generate(ctx, order.ID, period)
			switch {
			case err == nil:
				summary.Generated = append(summary.Generated, inv)
			case errors.Is(err, ErrAlreadyInvoiced):
				summary.Skipped++
			default:
				s.logger.Warn("invoice run failed for order", zap.Int64("order_id", order.ID), zap.String("period", period), zap.Error(err))
				summary.Failed[order.ID] = err.Error()
			}
		}
		if len(orders) < batchSize {
			break
		}
	}

	s.logger.Info("invoice run finished",
		zap.String("period", period),
		zap.Int("generated", len(summary.Generated)),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}

// Get returns an invoice by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.NotFound("invoice not found", errorbank.WithDetail("invoice_id", id))
		}
		return nil, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}
	return inv, nil
}

// ListByOrder returns an order's invoices.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Invoice, error) {
	invs, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list invoices", errorbank.WithCause(err))
	}
	return invs, nil
}
