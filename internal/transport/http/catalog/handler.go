package catalog

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/dto"
	"github.com/Additional-Code/dialtone/internal/presentation/http/request"
	"github.com/Additional-Code/dialtone/internal/presentation/http/response"
	service "github.com/Additional-Code/dialtone/internal/service/catalog"
)

// Module wires the read-only catalog endpoints.
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
	e.GET("/products", h.products)
	e.GET("/products/:id", h.product)
	e.GET("/catalog/plans", h.resolve)
}

func (h *Handler) products(c echo.Context) error {
	b := response.New(c)
	products, err := h.svc.Products(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(products).WithMeta("count", len(products)).Build()
}

func (h *Handler) product(c echo.Context) error {
	b := response.New(c)
	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	product, err := h.svc.Product(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(product).Build()
}

func (h *Handler) resolve(c echo.Context) error {
	b := response.New(c)

	var q dto.ResolvePlanQuery
	if err := request.Query(c, &q); err != nil {
		return b.WithError(err).Build()
	}

	plan, err := h.svc.Resolve(c.Request().Context(), q.ProductID, q.CountryID, q.AreaCode)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.PricePlanResponse{
		ID:        plan.ID,
		ProductID: plan.ProductID,
		CountryID: plan.CountryID,
		AreaCode:  plan.AreaCode,
		Rates:     plan.Rates,
		Terms:     plan.Terms,
	}).Build()
}
