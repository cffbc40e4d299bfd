package wallet

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/dto"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/presentation/http/request"
	"github.com/Additional-Code/dialtone/internal/presentation/http/response"
	service "github.com/Additional-Code/dialtone/internal/service/wallet"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/dialtone/transport/http/wallet")

// Module wires wallet ledger endpoints.
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
	g := e.Group("/wallets/:user_id")
	g.GET("", h.balance)
	g.POST("/credits", h.credit)
	g.GET("/transactions", h.transactions)
}

func (h *Handler) credit(c echo.Context) error {
	b := response.New(c)

	userID, err := request.ID(c, "user_id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.CreditRequest
	if err := request.Body(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "wallets.credit", trace.WithAttributes(
		attribute.Int64("wallet.user_id", userID),
		attribute.String("wallet.amount", payload.Amount.String()),
	))
	defer span.End()

	txn, err := h.svc.Credit(ctx, userID, payload.Amount, payload.Description)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(toDTO(txn)).Build()
}

// balance answers GET /wallets/:user_id[?threshold=100.00].
func (h *Handler) balance(c echo.Context) error {
	b := response.New(c)

	userID, err := request.ID(c, "user_id")
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx := c.Request().Context()

	bal, err := h.svc.GetBalance(ctx, userID)
	if err != nil {
		return b.WithError(err).Build()
	}
	resp := dto.BalanceResponse{UserID: userID, Balance: bal}

	if raw := c.QueryParam("threshold"); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return b.WithError(errorbank.Validation("invalid threshold", errorbank.WithDetail("threshold", raw))).Build()
		}
		low, err := h.svc.EvaluateThreshold(ctx, userID, threshold)
		if err != nil {
			return b.WithError(err).Build()
		}
		resp.Threshold = &threshold
		resp.Low = lo.ToPtr(low)
	}
	return b.WithData(resp).Build()
}

func (h *Handler) transactions(c echo.Context) error {
	b := response.New(c)

	userID, err := request.ID(c, "user_id")
	if err != nil {
		return b.WithError(err).Build()
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	txns, err := h.svc.Transactions(c.Request().Context(), userID, limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(lo.Map(txns, func(t *entity.WalletTransaction, _ int) dto.WalletTransactionResponse { return toDTO(t) })).
		WithPage(limit, 0, len(txns)).
		Build()
}

func toDTO(t *entity.WalletTransaction) dto.WalletTransactionResponse {
	return dto.WalletTransactionResponse{
		ID:              t.ID,
		Sequence:        t.Sequence,
		TransactionType: string(t.TransactionType),
		Amount:          t.Amount,
		BalanceBefore:   t.BalanceBefore,
		BalanceAfter:    t.BalanceAfter,
		Description:     t.Description,
		ReferenceType:   t.ReferenceType,
		ReferenceID:     t.ReferenceID,
		CreatedAt:       t.CreatedAt,
	}
}
