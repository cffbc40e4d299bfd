package order

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/dto"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/presentation/http/request"
	"github.com/Additional-Code/dialtone/internal/presentation/http/response"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	service "github.com/Additional-Code/dialtone/internal/service/order"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/dialtone/transport/http/order")

// Module wires HTTP order and pricing handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes order lifecycle and pricing endpoints over HTTP.
type Handler struct {
	svc     *service.Service
	pricing *pricing.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, prices *pricing.Service) *Handler {
	return &Handler{svc: svc, pricing: prices}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/checkout", h.checkout)
	g.GET("/:id", h.getByID)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/pay", h.markPaid)
	g.POST("/:id/pay-with-wallet", h.payWithWallet)
	g.POST("/:id/deliver", h.deliver)
	g.POST("/:id/cancel", h.cancel)
	g.GET("/:id/pricing", h.getPricing)
	g.PUT("/:id/pricing/:type", h.upsertPricing)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var q dto.ListOrdersQuery
	if err := request.Query(c, &q); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, orderrepo.Filter{
		CustomerID: q.CustomerID,
		Status:     entity.OrderStatus(q.Status),
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(lo.Map(orders, func(o *entity.Order, _ int) dto.OrderResponse { return toDTO(o) })).
		WithPage(q.Limit, q.Offset, len(orders)).
		Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.Int64("order.customer_id", payload.CustomerID))
	defer span.End()

	order, err := h.svc.Create(ctx, toCreateInput(payload))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)

	var payload dto.CheckoutRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.checkout", trace.WithAttributes(
		attribute.Int64("order.customer_id", payload.CustomerID),
		attribute.Int("cart.items", len(payload.Items)),
	))
	defer span.End()

	lines, err := h.svc.Checkout(ctx, service.CheckoutInput{
		CustomerID: payload.CustomerID,
		Items:      lo.Map(payload.Items, func(item dto.CreateOrderRequest, _ int) service.CreateInput { return toCreateInput(item) }),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	out := lo.Map(lines, func(line service.LineResult, _ int) dto.CheckoutLineResponse {
		resp := dto.CheckoutLineResponse{Order: toDTO(line.Order)}
		if line.PricingErr != nil {
			resp.PricingError = errorbank.From(line.PricingErr).Message()
		}
		return resp
	})
	return b.WithStatus(http.StatusCreated).WithData(out).Build()
}

func (h *Handler) confirm(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ConfirmOrderRequest
	if c.Request().ContentLength > 0 {
		if err := request.Body(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirm", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Confirm(ctx, id, payload.Override)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) markPaid(c echo.Context) error {
	return h.simpleTransition(c, "orders.markPaid", h.svc.MarkPaid)
}

func (h *Handler) payWithWallet(c echo.Context) error {
	return h.simpleTransition(c, "orders.payWithWallet", h.svc.PayWithWallet)
}

func (h *Handler) cancel(c echo.Context) error {
	return h.simpleTransition(c, "orders.cancel", h.svc.Cancel)
}

func (h *Handler) deliver(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.DeliverOrderRequest
	if c.Request().ContentLength > 0 {
		if err := request.Body(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.deliver", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Bool("order.force", payload.Force),
	))
	defer span.End()

	order, err := h.svc.MarkDelivered(ctx, id, payload.Force)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) simpleTransition(c echo.Context, name string, fn func(ctx context.Context, id int64) (*entity.Order, error)) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), name, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := fn(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) getPricing(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getPricing", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	pair, err := h.pricing.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderPricingResponse{
		OrderID: id,
		Current: toPricingDTO(pair.Current),
		Desired: toPricingDTO(pair.Desired),
	}).Build()
}

func (h *Handler) upsertPricing(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpsertPricingRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.upsertPricing", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("pricing.type", c.Param("type")),
	))
	defer span.End()

	row, err := h.pricing.Upsert(ctx, pricing.UpsertInput{
		OrderID:     id,
		PricingType: entity.PricingType(c.Param("type")),
		Fields:      payload.Fields,
		Terms:       payload.Terms(),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toPricingDTO(row)).Build()
}

func toCreateInput(p dto.CreateOrderRequest) service.CreateInput {
	return service.CreateInput{
		CustomerID: p.CustomerID,
		VendorID:   p.VendorID,
		ProductID:  p.ProductID,
		CountryID:  p.CountryID,
		AreaCode:   p.AreaCode,
		Quantity:   p.Quantity,
		Documents: lo.Map(p.Documents, func(d dto.DocumentRequest, _ int) entity.Document {
			return entity.Document{Name: d.Name, URL: d.URL, ContentType: d.ContentType}
		}),
		Desired:      p.Desired,
		DesiredTerms: p.DesiredTerms.Terms(),
	}
}

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		VendorID:     order.VendorID,
		ProductID:    order.ProductID,
		CountryID:    order.CountryID,
		AreaCode:     order.AreaCode,
		Quantity:     order.Quantity,
		Status:       string(order.Status),
		TotalAmount:  order.TotalAmount,
		PricingState: string(order.PricingState),
		Documents:    order.Documents,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
		ConfirmedAt:  order.ConfirmedAt,
		DeliveredAt:  order.DeliveredAt,
	}
}

func toPricingDTO(row *entity.OrderPricing) *dto.PricingResponse {
	if row == nil {
		return nil
	}
	return &dto.PricingResponse{
		PricingType: string(row.PricingType),
		Rates:       row.Rates,
		Terms:       row.Terms,
		UpdatedAt:   row.UpdatedAt,
	}
}
