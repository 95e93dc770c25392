package traceweave

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceweave/traceweave/config"
	"github.com/traceweave/traceweave/trace"
)

func TestNewWithDefaults(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Propagator)
	assert.True(t, p.Sanitizer.Enabled())
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "shouty"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestDescribeStatement(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	d := p.DescribeStatement("db.internal", 9000, "accounts", "SELECT * FROM users WHERE id = 42")
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", d.Operation.Sanitized)
	assert.Equal(t, "SELECT users", d.Operation.Summary)

	d = p.DescribeStatement("", 0, "", "SELECT 1")
	assert.Equal(t, "unknown", d.Host)
	assert.Equal(t, "unknown", d.LogicalName)
}

func TestEndToEndExport(t *testing.T) {
	var mu sync.Mutex
	var names []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		payload, err := io.ReadAll(zr)
		require.NoError(t, err)

		var batch []struct {
			Name    string `json:"name"`
			TraceID string `json:"traceId"`
		}
		require.NoError(t, sonic.Unmarshal(payload, &batch))

		mu.Lock()
		for _, s := range batch {
			names = append(names, s.Name)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Service.Name = "e2e"
	cfg.Exporter.Endpoint = srv.URL
	cfg.Exporter.BatchSize = 2
	cfg.Exporter.FlushInterval = 50 * time.Millisecond

	p, err := New(cfg)
	require.NoError(t, err)

	ctx, span := p.Tracer.StartSpan(context.Background(), "parent", trace.WithKind(trace.KindServer))
	_, child := p.Tracer.StartSpan(ctx, "child")
	child.End()
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(shutdownCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"child", "parent"}, names, "child reaches the collector before its parent")
}
