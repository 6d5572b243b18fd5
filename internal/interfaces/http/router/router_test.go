package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bicicare/invoicebridge/internal/application/invoicing"
	"github.com/bicicare/invoicebridge/internal/infrastructure/logger"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/dto"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	r.Register(NewDomainGroup("test", "/test").GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	}))
	r.RegisterRoot(NewDomainGroup("root", "/").POST("/hook", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	}))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("test", "/test").
		Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		}).
		GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, "test", g.Name())
	assert.Equal(t, "/test", g.Prefix())

	g.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/items", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Header().Get("X-Group"))
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

type stubRunner struct {
	day    time.Time
	report *invoicing.SyncReport
	err    error
}

func (s *stubRunner) RunDay(_ context.Context, day time.Time) (*invoicing.SyncReport, error) {
	s.day = day
	return s.report, s.err
}

func newTestEngine(t *testing.T, runner *stubRunner, checks map[string]handler.HealthCheck) *gin.Engine {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	engine, err := NewEngine(Config{
		ServiceName: "invoicebridge",
		MaxBodySize: 1 << 20,
		Meter:       noop.NewMeterProvider().Meter("test"),
	}, Handlers{
		System:  handler.NewSystemHandler("invoicebridge", "test", checks),
		Webhook: handler.NewPaymentWebhookHandler(),
		Sync:    handler.NewSyncHandler(runner, now),
	})
	require.NoError(t, err)
	return engine
}

func TestEngine_Routes(t *testing.T) {
	runner := &stubRunner{report: &invoicing.SyncReport{RunID: uuid.New(), Day: "2025-03-09"}}
	engine := newTestEngine(t, runner, nil)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ping", "", http.StatusOK},
		{http.MethodGet, "/api/v1/system/info", "", http.StatusOK},
		{http.MethodPost, "/payment-completed", "id=ord-1", http.StatusOK},
		{http.MethodPost, "/api/v1/sync", "", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestEngine_PaymentCompleted(t *testing.T) {
	engine := newTestEngine(t, &stubRunner{}, nil)

	tests := []struct {
		name   string
		form   url.Values
		status int
		want   string
	}{
		{"id and amount", url.Values{"id": {"ord-1"}, "amount": {"12.50"}}, http.StatusOK,
			`{"status":"received","id":"ord-1","amount":"12.50"}`},
		{"id only", url.Values{"id": {"ord-2"}}, http.StatusOK,
			`{"status":"received","id":"ord-2","amount":null}`},
		{"missing id", url.Values{"amount": {"1"}}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payment-completed", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, w.Body.String())
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.Equal(t, "id", resp.Error.Details[0].Field)
		})
	}
}

func TestEngine_HealthDegraded(t *testing.T) {
	engine := newTestEngine(t, &stubRunner{}, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","redis":"connection refused"}}`, w.Body.String())
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine(Config{TrustedProxies: []string{"not-an-ip"}}, Handlers{
		System: handler.NewSystemHandler("invoicebridge", "test", nil),
	})
	assert.Error(t, err)
}
