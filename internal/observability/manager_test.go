package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
)

func TestPrometheusHandlerServesManagerMetrics(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	var cfg config.Config
	cfg.Observability = config.Observability{
		ServiceName:     "dialtone-test",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}

	mgr, err := NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())

	counter, err := mgr.Meter("dialtone/test").Int64Counter("dialtone.test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dialtone_test_events")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	lc.RequireStart().RequireStop()
}

func TestMeterIsNoopWhenMetricsDisabled(t *testing.T) {
	mgr, err := NewManager(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())

	counter, err := mgr.Meter("dialtone/test").Int64Counter("ignored")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}
