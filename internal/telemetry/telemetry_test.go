package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/nadzzz/narrator/internal/config"
)

func TestInitExposesMetrics(t *testing.T) {
	ctx := context.Background()
	setup, err := Init(ctx, config.TelemetryConfig{ServiceName: "narrator-test"}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = setup.Shutdown(ctx) })

	counter, err := otel.Meter("telemetry-test").Int64Counter("narrator.test.events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	setup.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "narrator_test_events")
}
