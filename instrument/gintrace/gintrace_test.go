package gintrace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceweave/traceweave/internal/monitoring"
	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

type captureExporter struct {
	mu    sync.Mutex
	spans []trace.SpanData
}

func (c *captureExporter) Export(span trace.SpanData) {
	c.mu.Lock()
	c.spans = append(c.spans, span)
	c.mu.Unlock()
}

func setup(t *testing.T) (*gin.Engine, *captureExporter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := monitoring.New(prometheus.NewRegistry())
	exp := &captureExporter{}
	tracer := trace.New("http-test", trace.WithExporter(exp), trace.WithMetrics(metrics))
	prop := propagation.New(propagation.WithMetrics(metrics))

	router := gin.New()
	router.Use(Middleware(tracer, prop))
	return router, exp
}

func TestMiddlewareRootSpan(t *testing.T) {
	router, exp := setup(t)
	router.GET("/users/:id", func(c *gin.Context) {
		assert.NotNil(t, trace.SpanFromContext(c.Request.Context()))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/7", nil)
	router.ServeHTTP(w, req)

	require.Len(t, exp.spans, 1)
	span := exp.spans[0]
	assert.Equal(t, "GET /users/:id", span.Name)
	assert.Equal(t, trace.KindServer, span.Kind)
	assert.Equal(t, trace.StatusOK, span.Status)
	assert.Equal(t, http.StatusOK, span.Attributes["http.status_code"])
	assert.False(t, span.ParentSpanID.IsValid(), "no inbound context means a root span")

	echoed := w.Header().Get("traceparent")
	require.NotEmpty(t, echoed, "response echoes the server span context")
	assert.True(t, strings.Contains(echoed, span.Context.TraceID.String()))
}

func TestMiddlewareContinuesInboundTrace(t *testing.T) {
	router, exp := setup(t)
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	router.ServeHTTP(w, req)

	require.Len(t, exp.spans, 1)
	span := exp.spans[0]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.Context.TraceID.String())
	assert.Equal(t, "00f067aa0ba902b7", span.ParentSpanID.String())
	assert.True(t, span.Context.Sampled)
}

func TestMiddlewareMalformedHeaderStillServes(t *testing.T) {
	router, exp := setup(t)
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "garbage")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "tracing must never fail the request")
	require.Len(t, exp.spans, 1)
	assert.False(t, exp.spans[0].ParentSpanID.IsValid())
}

func TestMiddlewareServerError(t *testing.T) {
	router, exp := setup(t)
	router.GET("/boom", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Len(t, exp.spans, 1)
	assert.Equal(t, trace.StatusError, exp.spans[0].Status)
}
