package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestSetupWithoutEndpointLogsLocally(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Setup(context.Background(), Options{
		ServiceName: "schoolshelf",
		LogLevel:    slog.LevelInfo,
		LogFormat:   "json",
		Output:      &buf,
	})
	require.NoError(t, err)

	tel.Logger.Debug("hidden")
	tel.Logger.Info("book borrowed", "book_id", "42")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"book borrowed"`)
	assert.Contains(t, buf.String(), `"book_id":"42"`)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTeeFansOut(t *testing.T) {
	var text, js bytes.Buffer
	logger := slog.New(Tee(
		NewHandler(&text, "text", slog.LevelInfo),
		NewHandler(&js, "json", slog.LevelWarn),
	)).With("service", "schoolshelf").WithGroup("loan")

	logger.Info("opened", "id", "1")
	logger.Warn("overdue", "id", "2")

	assert.Contains(t, text.String(), "opened")
	assert.Contains(t, text.String(), "overdue")
	assert.Contains(t, text.String(), "loan.id=1")
	assert.NotContains(t, js.String(), "opened", "each handler keeps its own level")
	assert.Contains(t, js.String(), `"service":"schoolshelf"`)
	assert.Contains(t, js.String(), `"loan":{"id":"2"}`)
}

func TestSetupWithEndpointExportsMetrics(t *testing.T) {
	var (
		mu    sync.Mutex
		paths = make(map[string]int)
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()
	t.Cleanup(func() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
	})

	tel, err := Setup(context.Background(), Options{
		ServiceName:  "schoolshelf",
		OTLPEndpoint: collector.URL,
		LogFormat:    "text",
		Output:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	counter, err := otel.Meter("schoolshelf/test").Int64Counter("inventory.borrows")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, tel.Shutdown(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, paths["/v1/metrics"], "shutdown flushes pending metrics")
}
