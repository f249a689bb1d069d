package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextDefaultsToNop(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("user_id", "u-1"))
	FromContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "u-1", logs.All()[0].ContextMap()["user_id"])
}

func TestRequestLoggerRecordsRoute(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetrics()

	r := chi.NewRouter()
	r.Use(InjectLogger(zap.New(core)))
	r.Use(RequestLogger(metrics))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "/items/{id}", entries[0].ContextMap()["route"])
}

func TestMetricsCountersAndHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveTransaction("accepted")
	m.ObserveTransaction("accepted")
	m.ObserveTransaction("rejected")
	m.ObserveStockAdjustment("restock", "ok")

	require.Equal(t, float64(2), testutil.ToFloat64(m.transactions.WithLabelValues("accepted")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.stockAdjustments.WithLabelValues("restock", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "pos_transactions_total"))

	var nilMetrics *Metrics
	nilMetrics.ObserveTransaction("accepted")
}
