package order_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/dto"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/presentation/http/request"
	"github.com/Additional-Code/dialtone/internal/service/catalog"
	orderservice "github.com/Additional-Code/dialtone/internal/service/order"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/internal/service/wallet"
	"github.com/Additional-Code/dialtone/internal/testutil"
	ordertransport "github.com/Additional-Code/dialtone/internal/transport/http/order"
)

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	env := testutil.NewEnv(t)
	env.Catalog.AddProduct(1, entity.ProductDID)
	env.Catalog.AddPlan(entity.PricePlan{
		ProductID: 1,
		CountryID: 44,
		Rates:     entity.Rates{entity.RateMRC: decimal.RequireFromString("2.50")},
	})

	cat := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})
	prc := pricing.NewService(pricing.Params{
		Store: env.Pricing, Orders: env.Orders, Products: cat,
		Transactor: env.Tx, Locker: env.Locker, Clock: env.Clock, Logger: env.Logger,
	})
	wal := wallet.NewService(wallet.Params{
		Store: env.Wallet, Transactor: env.Tx, Locker: env.Locker, Clock: env.Clock,
		Publisher: env.Publisher, Config: env.Config, Logger: env.Logger,
	})
	svc := orderservice.NewService(orderservice.Params{
		Repository: env.Orders,
		Numbers:    env.Numbers,
		Catalog:    cat,
		Pricing:    prc,
		Wallet:     wal,
		Transactor: env.Tx,
		Locker:     env.Locker,
		Clock:      env.Clock,
		Cache:      env.Cache,
		Config:     env.Config,
		Logger:     env.Logger,
		Publisher:  env.Publisher,
	})

	e := echo.New()
	e.Validator = request.NewValidator()
	ordertransport.Register(e, ordertransport.NewHandler(svc, prc))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAndConfirmOverHTTP(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/orders", `{"customer_id":7,"product_id":1,"country_id":44,"quantity":3,"desired_pricing":{"mrc":"$2.00"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.OrderResponse](t, rec)
	assert.Equal(t, string(entity.OrderStatusInProgress), created.Data.Status)
	assert.Equal(t, string(entity.PricingStateRecorded), created.Data.PricingState)

	rec = do(e, http.MethodGet, "/orders/1/pricing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[dto.OrderPricingResponse](t, rec)
	require.NotNil(t, pair.Data.Desired)
	assert.Nil(t, pair.Data.Current)

	rec = do(e, http.MethodPost, "/orders/1/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[dto.OrderResponse](t, rec)
	assert.Equal(t, string(entity.OrderStatusConfirmed), confirmed.Data.Status)
	assert.True(t, decimal.RequireFromString("7.5").Equal(confirmed.Data.TotalAmount))
}

func TestValidationErrorsUseFieldNames(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/orders", `{"customer_id":7,"country_id":44,"quantity":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode[any](t, rec)
	assert.False(t, out.Success)
	assert.Equal(t, "validation", out.Error.Kind)
	assert.Contains(t, out.Error.Details, "product_id")
	assert.Contains(t, out.Error.Details, "quantity")
}

func TestErrorKindsMapToStatus(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodGet, "/orders/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/orders", `{"customer_id":7,"product_id":1,"country_id":44,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPost, "/orders/1/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	out := decode[any](t, rec)
	assert.Equal(t, "invalid_transition", out.Error.Kind)
}

func TestCheckoutReturnsOneLinePerItem(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/orders/checkout", `{"customer_id":7,"items":[
		{"product_id":1,"country_id":44,"quantity":1},
		{"product_id":1,"country_id":44,"quantity":2,"area_code":"20"}
	]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[[]dto.CheckoutLineResponse](t, rec)
	require.Len(t, out.Data, 2)
	assert.Equal(t, int64(7), out.Data[1].Order.CustomerID)
	assert.Equal(t, "20", out.Data[1].Order.AreaCode)
}
