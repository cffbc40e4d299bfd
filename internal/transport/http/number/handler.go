package number

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
	service "github.com/Additional-Code/dialtone/internal/service/number"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/dialtone/transport/http/number")

// Module wires number allocation endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes number allocation for paid orders.
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func Register(e *echo.Echo, h *Handler) {
	e.GET("/orders/:id/numbers", h.listByOrder)
	e.POST("/orders/:id/numbers", h.allocate)
	e.GET("/numbers/:id", h.getByID)
	e.DELETE("/numbers/:id", h.release)
}

func (h *Handler) allocate(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.AllocateNumberRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "numbers.allocate", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	n, err := h.svc.Allocate(ctx, orderID, payload.Number)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(ToDTO(n)).Build()
}

func (h *Handler) release(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "numbers.release", trace.WithAttributes(attribute.Int64("number.id", id)))
	defer span.End()

	if err := h.svc.Release(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(ToDTO(n)).Build()
}

func (h *Handler) listByOrder(c echo.Context) error {
	b := response.New(c)

	orderID, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	numbers, err := h.svc.ListByOrder(c.Request().Context(), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(lo.Map(numbers, func(n *entity.Number, _ int) dto.NumberResponse { return ToDTO(n) })).
		WithMeta("count", len(numbers)).
		Build()
}

// ToDTO maps a number to its transport shape.
func ToDTO(n *entity.Number) dto.NumberResponse {
	return dto.NumberResponse{
		ID:                  n.ID,
		OrderID:             n.OrderID,
		CustomerID:          n.CustomerID,
		Number:              n.Number,
		Status:              string(n.Status),
		DisconnectionStatus: string(n.DisconnectionStatus),
		CreatedAt:           n.CreatedAt,
	}
}
