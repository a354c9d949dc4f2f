package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/trafficpulse/trafficpulse/internal/api/middleware"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("trafficpulse-api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/index", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/index", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_UsesRoutePattern(t *testing.T) {
	sr := setupTestTracer(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("trafficpulse-api"))
	r.Get("/api/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/things/42", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/things/{id}", spans[0].Name())

	route, ok := attrValue(spans[0].Attributes(), "http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/things/{id}", route.AsString())
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("trafficpulse-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/index", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("trafficpulse-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)

	status, ok := attrValue(spans[0].Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(404), status.AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code, "4xx is not a server error")
}

func TestTracing_MarksErrorOnServerError(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("trafficpulse-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/index", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Internal Server Error", spans[0].Status().Description)
}

func TestTracing_IncludesRequestID(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.RequestID(
		middleware.Tracing("trafficpulse-api")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/index", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)

	id, ok := attrValue(spans[0].Attributes(), "request.id")
	require.True(t, ok)
	assert.Contains(t, id.AsString(), "req_")
}
