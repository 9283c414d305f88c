package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNew(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("metrics disabled", func(t *testing.T) {
		obs, err := New(log, "", "1.0")
		require.NoError(t, err)
		require.Same(t, log, obs.Logger())
		require.Nil(t, obs.MetricsHandler())
		require.Nil(t, obs.PrometheusRegisterer())
		require.NotNil(t, obs.Meter("test"))
		require.NotNil(t, obs.Tracer("test"))
		require.NoError(t, obs.Shutdown())
	})

	t.Run("unsupported exporter", func(t *testing.T) {
		obs, err := New(log, "otlp", "1.0")
		require.EqualError(t, err, `initialize meter provider: unsupported exporter "otlp"`)
		require.Nil(t, obs)
	})

	t.Run("prometheus", func(t *testing.T) {
		obs, err := New(log, "prometheus", "1.0")
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, obs.Shutdown()) })
		require.NotNil(t, obs.PrometheusRegisterer())

		cnt, err := obs.Meter("validator").Int64Counter("commit.count")
		require.NoError(t, err)
		cnt.Add(context.Background(), 1, metric.WithAttributes(ErrStatus(nil)))

		h := obs.MetricsHandler()
		require.NotNil(t, h)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		require.Contains(t, rec.Body.String(), "pv_commit_count")
	})
}

func TestAttributes(t *testing.T) {
	require.Equal(t, attribute.String("status", "ok"), ErrStatus(nil))
	require.Equal(t, attribute.String("status", "err"), ErrStatus(errors.New("boom")))
	require.Equal(t, attribute.Int64("block.height", 42), Height(42))
	require.Equal(t, attribute.String("peer.id", "A"), PeerID("A"))
}
