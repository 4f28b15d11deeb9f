package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/annel0/chunkloader/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	// Отдельный регистр для изоляции тестов
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())

	r.GET("/test", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/error", func(c *gin.Context) { c.JSON(500, gin.H{"error": "test error"}) })

	assert.Equal(t, 200, serve(r, "GET", "/test").Code)
	assert.Equal(t, 500, serve(r, "GET", "/error").Code)

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var durationFound, errorsFound bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "test_http_request_duration_seconds":
			durationFound = true
			assert.Equal(t, "Длительность HTTP-запросов.", mf.GetHelp())
			assert.Len(t, mf.Metric, 2)
		case "test_http_request_errors_total":
			errorsFound = true
			assert.Len(t, mf.Metric, 1)
			assert.Equal(t, float64(1), mf.Metric[0].GetCounter().GetValue())
		}
	}

	assert.True(t, durationFound, "Duration metric not found")
	assert.True(t, errorsFound, "Errors metric not found")
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())

	entered := make(chan struct{})
	release := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.JSON(200, gin.H{"ok": true})
	})

	done := make(chan struct{})
	go func() {
		serve(r, "GET", "/slow")
		close(done)
	}()

	<-entered
	assert.Equal(t, float64(1), testutil.ToFloat64(promMw.reqInflight))

	close(release)
	<-done
	assert.Equal(t, float64(0), testutil.ToFloat64(promMw.reqInflight))
}

func TestRequestLogger_TraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(NewRequestLogger(logging.NewWriterLogger("api", io.Discard, logging.INFO)).Handler())

	var capturedTraceID string
	r.GET("/test", func(c *gin.Context) {
		traceID, exists := c.Get(TraceIDKey)
		require.True(t, exists, "trace_id should be set in context")
		capturedTraceID = traceID.(string)
		c.JSON(200, gin.H{"trace_id": capturedTraceID})
	})

	w := serve(r, "GET", "/test")

	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, capturedTraceID, "trace_id should not be empty")
	assert.Contains(t, w.Body.String(), capturedTraceID)
	assert.Equal(t, capturedTraceID, w.Header().Get("X-Trace-Id"))
}

func TestRequestLogger_LogFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	r.Use(NewRequestLogger(logging.NewWriterLogger("api", &buf, logging.INFO)).Handler())
	r.GET("/api/worlds/:world", func(c *gin.Context) { c.Status(204) })

	serve(r, "GET", "/api/worlds/world")

	out := buf.String()
	assert.Contains(t, out, "[INFO] [api] [HTTP] ◀ GET /api/worlds/:world 204")
	assert.NotContains(t, out, "▶", "начало запроса пишется на уровне DEBUG")
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("test", registry)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r, registry)

	r.GET("/api/test", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	assert.Equal(t, 200, serve(r, "GET", "/api/test").Code)

	w := serve(r, "GET", "/metrics")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "# HELP test_http_request_duration_seconds")
}

func TestPrometheusMiddleware_ErrorCounting(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("error_test", registry)
	r.Use(promMw.Handler())

	r.GET("/400", func(c *gin.Context) { c.JSON(400, gin.H{"error": "bad request"}) })
	r.GET("/401", func(c *gin.Context) { c.JSON(401, gin.H{"error": "unauthorized"}) })
	r.GET("/404", func(c *gin.Context) { c.JSON(404, gin.H{"error": "not found"}) })
	r.GET("/500", func(c *gin.Context) { c.JSON(500, gin.H{"error": "internal error"}) })
	r.GET("/200", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	for _, endpoint := range []string{"/400", "/401", "/404", "/500", "/200", "/200"} {
		serve(r, "GET", endpoint)
	}

	metricFamilies, err := registry.Gather()
	require.NoError(t, err)

	var totalErrors float64
	for _, mf := range metricFamilies {
		if mf.GetName() == "error_test_http_request_errors_total" {
			for _, metric := range mf.Metric {
				totalErrors += metric.GetCounter().GetValue()
			}
		}
	}

	// Должно быть 4 ошибки (400, 401, 404, 500)
	assert.Equal(t, float64(4), totalErrors)
}

func TestPrometheusMiddleware_RouteLabels(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw := NewPrometheusMiddleware("route_test", registry)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r, registry)
	r.GET("/api/worlds/:world", func(c *gin.Context) { c.String(200, "ok") })

	serve(r, "GET", "/api/worlds/a")
	serve(r, "GET", "/api/worlds/b")
	serve(r, "GET", "/nowhere")
	serve(r, "GET", "/metrics")

	assert.Equal(t, uint64(2), histogramCount(t, promMw.reqDuration.WithLabelValues("GET", "/api/worlds/:world", "200")), "оба мира в одном ряду")
	assert.Equal(t, float64(1), testutil.ToFloat64(promMw.reqErrors.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(promMw.reqDuration), "/metrics не учитывается")
	assert.Equal(t, 1, testutil.CollectAndCount(promMw.respSize), "ответ 404 без тела")
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, o.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

// BenchmarkPrometheusMiddleware измеряет overhead middleware
func BenchmarkPrometheusMiddleware(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(NewPrometheusMiddleware("bench", prometheus.NewRegistry()).Handler())
	r.GET("/bench", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			serve(r, "GET", "/bench")
		}
	})
}
