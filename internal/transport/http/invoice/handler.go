package invoice

import (
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
	service "github.com/Additional-Code/dialtone/internal/service/invoice"
)

const dateLayout = "2006-01-02"

var httpTracer = otel.Tracer("github.com/Additional-Code/dialtone/transport/http/invoice")

// Module wires invoice endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes invoice generation and usage updates.
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func Register(e *echo.Echo, h *Handler) {
	e.GET("/orders/:id/invoices", h.listByOrder)
	e.POST("/orders/:id/invoices", h.generate)
	e.GET("/invoices/:id", h.getByID)
	e.PATCH("/invoices/:id/usage", h.updateUsage)
	e.POST("/invoices/run", h.run)
}

func (h *Handler) generate(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.GenerateInvoiceRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.generate", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("invoice.period", payload.Period),
	))
	defer span.End()

	inv, err := h.svc.Generate(ctx, orderID, payload.Period)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(ToDTO(inv)).Build()
}

func (h *Handler) updateUsage(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateUsageRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.updateUsage", trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	inv, err := h.svc.UpdateUsage(ctx, id, payload.UsageAmount)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(ToDTO(inv)).Build()
}

func (h *Handler) run(c echo.Context) error {
	b := response.New(c)

	var payload dto.GenerateInvoiceRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.run", trace.WithAttributes(attribute.String("invoice.period", payload.Period)))
	defer span.End()

	summary, err := h.svc.GenerateForPeriod(ctx, payload.Period)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(SummaryToDTO(summary)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(ToDTO(inv)).Build()
}

func (h *Handler) listByOrder(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	invoices, err := h.svc.ListByOrder(c.Request().Context(), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(lo.Map(invoices, func(inv *entity.Invoice, _ int) dto.InvoiceResponse { return ToDTO(inv) })).
		WithMeta("count", len(invoices)).
		Build()
}

// ToDTO renders invoice dates as calendar days.
func ToDTO(inv *entity.Invoice) dto.InvoiceResponse {
	return dto.InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		OrderID:       inv.OrderID,
		CustomerID:    inv.CustomerID,
		Period:        inv.Period,
		FromDate:      inv.FromDate.Format(dateLayout),
		ToDate:        inv.ToDate.Format(dateLayout),
		Quantity:      inv.Quantity,
		MRCAmount:     inv.MRCAmount,
		UsageAmount:   inv.UsageAmount,
		Amount:        inv.Amount,
		Status:        string(inv.Status),
		DueDate:       inv.DueDate.Format(dateLayout),
		PaidDate:      inv.PaidDate,
	}
}

func SummaryToDTO(s *service.RunSummary) dto.InvoiceRunResponse {
	return dto.InvoiceRunResponse{
		Period:    s.Period,
		Generated: lo.Map(s.Generated, func(inv *entity.Invoice, _ int) dto.InvoiceResponse { return ToDTO(inv) }),
		Skipped:   s.Skipped,
		Failed:    s.Failed,
	}
}
