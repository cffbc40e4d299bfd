package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), rec
}

func TestSuccessWithPage(t *testing.T) {
	c, rec := newContext()
	require.NoError(t, New(c).WithData([]int{1, 2}).WithPage(50, 0, 2).Build())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[1,2],"meta":{"page":{"limit":50,"count":2}}}`, rec.Body.String())
}

func TestErrorUsesKindStatus(t *testing.T) {
	c, rec := newContext()
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
	err := errorbank.PricingUnavailable("no catalog plan", errorbank.WithDetail("order_id", 4))

	require.NoError(t, New(c).WithError(err).Build())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"kind":"pricing_unavailable","message":"no catalog plan","details":{"order_id":4}},"meta":{"request_id":"req-1"}}`, rec.Body.String())
}

func TestInternalErrorHidesCause(t *testing.T) {
	c, rec := newContext()
	require.NoError(t, New(c).WithError(errors.New("pq: password authentication failed")).Build())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestNoContent(t *testing.T) {
	c, rec := newContext()
	require.NoError(t, New(c).WithStatus(http.StatusNoContent).Build())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
