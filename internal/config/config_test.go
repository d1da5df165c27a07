package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "SHIPPING_FAST_REGION", "SHIPPING_FAST_DAYS", "SHIPPING_DEFAULT_DAYS", "ESTIMATE_OWN_PRINT_TIME", "POSTGRES_MAX_CONNS", "POSTGRES_MIN_CONNS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	require.Equal(t, ":8081", cfg.HTTPAddr)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "CA", cfg.ShippingFastRegion)
	require.Equal(t, 5, cfg.ShippingFastDays)
	require.Equal(t, 8, cfg.ShippingDefaultDays)
	require.False(t, cfg.EstimateOwnPrintTime)
	require.Equal(t, 8, cfg.PostgresMaxConns)
	require.Equal(t, 1, cfg.PostgresMinConns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("SHIPPING_FAST_DAYS", "3")
	t.Setenv("SHIPPING_DEFAULT_DAYS", "not-a-number")
	t.Setenv("PRODUCTION_WORKERS", "-2")
	t.Setenv("ESTIMATE_OWN_PRINT_TIME", "true")

	cfg := Load()
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 3, cfg.ShippingFastDays)
	require.Equal(t, 8, cfg.ShippingDefaultDays)
	require.Equal(t, 8, cfg.ProductionWorkers)
	require.True(t, cfg.EstimateOwnPrintTime)
}

func TestLoadTrackingTemplate(t *testing.T) {
	t.Setenv("TRACKING_URL_TEMPLATE", "https://track.example.com/?n=%s")
	require.Equal(t, "https://track.example.com/?n=%s", Load().TrackingURLTemplate)

	for _, bad := range []string{"https://track.example.com/", "https://x/%s/%s"} {
		t.Setenv("TRACKING_URL_TEMPLATE", bad)
		require.Equal(t, defaultTrackingTemplate, Load().TrackingURLTemplate, bad)
	}
}
