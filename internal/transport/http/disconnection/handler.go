package disconnection

import (
	"net/http"
	"strconv"

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
	service "github.com/Additional-Code/dialtone/internal/service/disconnection"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/dialtone/transport/http/disconnection")

// Module wires the disconnection workflow endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/disconnections")
	g.POST("", h.request)
	g.GET("", h.listPending)
	g.GET("/:id", h.getByID)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/reject", h.reject)
}

func (h *Handler) request(c echo.Context) error {
	b := response.New(c)

	var payload dto.DisconnectionCreateRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "disconnections.request", trace.WithAttributes(
		attribute.Int64("number.id", payload.NumberID),
		attribute.Int64("customer.id", payload.CustomerID),
	))
	defer span.End()

	req, err := h.svc.Request(ctx, service.RequestInput{
		NumberID:   payload.NumberID,
		CustomerID: payload.CustomerID,
		Notes:      payload.Notes,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(toDTO(req)).Build()
}

func (h *Handler) approve(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "disconnections.approve", trace.WithAttributes(attribute.Int64("disconnection.id", id)))
	defer span.End()

	req, err := h.svc.Approve(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(req)).Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.DisconnectionDecisionRequest
	if c.Request().ContentLength > 0 {
		if err := request.Body(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "disconnections.reject", trace.WithAttributes(attribute.Int64("disconnection.id", id)))
	defer span.End()

	req, err := h.svc.Reject(ctx, id, payload.Notes)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(req)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	req, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(req)).Build()
}

// listPending is the staff review queue.
func (h *Handler) listPending(c echo.Context) error {
	b := response.New(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	pending, err := h.svc.ListPending(c.Request().Context(), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(lo.Map(pending, func(r *entity.DisconnectionRequest, _ int) dto.DisconnectionResponse { return toDTO(r) })).
		WithPage(limit, 0, len(pending)).
		Build()
}

func toDTO(r *entity.DisconnectionRequest) dto.DisconnectionResponse {
	return dto.DisconnectionResponse{
		ID:          r.ID,
		NumberID:    r.NumberID,
		CustomerID:  r.CustomerID,
		Status:      string(r.Status),
		Notes:       r.Notes,
		RequestedAt: r.RequestedAt,
		DecidedAt:   r.DecidedAt,
	}
}
