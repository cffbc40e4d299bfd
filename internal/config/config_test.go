package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Equal(t, 5*time.Second, cfg.Lock.WaitTimeout)
	assert.Equal(t, 15, cfg.Billing.InvoiceNetDays)
	assert.True(t, cfg.Billing.AutoInvoiceOnDelivery)
	assert.True(t, cfg.Billing.WalletStartingBalance.IsZero())
	assert.Equal(t, "10", cfg.Billing.LowBalanceThreshold.String())
	assert.Equal(t, "dialtone.events", cfg.Messaging.Kafka.Topic)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("LOCK_DRIVER", " Redis ")
	t.Setenv("BILLING_INVOICE_NET_DAYS", "30")
	t.Setenv("WALLET_STARTING_BALANCE", "12.50")
	t.Setenv("WALLET_LOW_BALANCE_THRESHOLD", "not-a-number")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("OBS_PROMETHEUS_PATH", "metrics")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Lock.Driver)
	assert.Equal(t, 30, cfg.Billing.InvoiceNetDays)
	assert.Equal(t, "12.5", cfg.Billing.WalletStartingBalance.String())
	assert.Equal(t, "10", cfg.Billing.LowBalanceThreshold.String())
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"lock driver":      {"LOCK_DRIVER": "zookeeper"},
		"net days":         {"BILLING_INVOICE_NET_DAYS": "-1"},
		"starting balance": {"WALLET_STARTING_BALANCE": "-3"},
		"cache driver":     {"CACHE_DRIVER": "memcached"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}
