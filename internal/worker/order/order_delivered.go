package order

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/service/invoice"
	ordersvc "github.com/Additional-Code/dialtone/internal/service/order"
	"github.com/Additional-Code/dialtone/internal/worker"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/dialtone/worker/order")

// Invoicer issues the first invoice of a delivered order.
type Invoicer interface {
	Generate(ctx context.Context, orderID int64, period string) (*entity.Invoice, error)
}

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		func(s *invoice.Service) Invoicer { return s },
		fx.Annotate(
			NewOrderDeliveredHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderDeliveredHandler invoices the delivery month of each delivered order.
func NewOrderDeliveredHandler(invoices Invoicer, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, ev messaging.Event) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.delivered", trace.WithAttributes(
			attribute.String("messaging.event_type", ev.Type),
		))
		defer span.End()

		if !cfg.Billing.AutoInvoiceOnDelivery {
			return nil
		}

		var event ordersvc.Event
		if err := json.Unmarshal(ev.Payload, &event); err != nil {
			logger.Error("failed to decode order delivered", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}

		period := event.OccurredAt.UTC().Format(invoice.PeriodLayout)
		inv, err := invoices.Generate(ctx, event.ID, period)
		switch {
		case err == nil:
			logger.Info("delivery invoice generated",
				zap.Int64("order_id", event.ID),
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.String("period", period),
			)
			return nil
		case errors.Is(err, invoice.ErrAlreadyInvoiced):
			logger.Debug("delivery invoice already exists", zap.Int64("order_id", event.ID), zap.String("period", period))
			return nil
		case errorbank.Is(err, errorbank.KindPricingUnavailable), errorbank.Is(err, errorbank.KindInvalidTransition):
			logger.Warn("delivery invoice skipped", zap.Int64("order_id", event.ID), zap.Error(err))
			return nil
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "generate failed")
			return err
		}
	}

	return worker.HandlerRegistration{
		EventType: messaging.EventOrderDelivered,
		Handler:   handler,
	}
}
