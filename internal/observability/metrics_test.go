package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `kitchen_http_requests_total{code="418",route="/test"} 1`)
	assert.Contains(t, body, `kitchen_http_request_duration_seconds_bucket{route="/test"`)
}

func TestProcurementMetricsShareRegistry(t *testing.T) {
	metrics := NewMetrics()
	proc := NewProcurementMetrics(metrics.Registerer())

	proc.OrderCreated("approved", true)
	proc.OrderCreated("pending", false)
	proc.OrderTransitioned("approved", "ordered")
	proc.TransitionRejected("forbidden")
	proc.DeliveryItemSkipped()
	proc.TransactionRetried("transition")

	body := scrape(t, metrics)
	for _, want := range []string{
		`kitchen_purchase_orders_created_total{auto_approved="true",status="approved"} 1`,
		`kitchen_purchase_orders_created_total{auto_approved="false",status="pending"} 1`,
		`kitchen_delivery_items_skipped_total 1`,
		`kitchen_purchase_order_transitions_total{from="approved",to="ordered"} 1`,
		`kitchen_purchase_order_transitions_rejected_total{reason="forbidden"} 1`,
		`kitchen_procurement_tx_retries_total{operation="transition"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), want)
	}
}

func TestNilMetricsHandlerUnavailable(t *testing.T) {
	var metrics *Metrics
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
