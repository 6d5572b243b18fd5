// Package router assembles the gin engine.
package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/infrastructure/logger"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/handler"
	"github.com/bicicare/invoicebridge/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	root       []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar mounted under /api/<version>
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a registrar mounted at the root path
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	rootGroup := &r.engine.RouterGroup
	for _, registrar := range r.root {
		registrar.RegisterRoutes(rootGroup)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a route group with its own prefix and middleware
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle("GET", path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle("POST", path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Config holds what the engine needs besides handlers
type Config struct {
	ServiceName    string
	TrustedProxies []string
	MaxBodySize    int64
	TracingEnabled bool
	// Meter enables HTTP metrics when set
	Meter  metric.Meter
	Logger *zap.Logger
}

// Handlers groups the HTTP handlers
type Handlers struct {
	System  *handler.SystemHandler
	Webhook *handler.PaymentWebhookHandler
	Sync    *handler.SyncHandler
}

// NewEngine builds the gin engine with middleware and every route:
//
//	GET  /health, /ping
//	POST /payment-completed
//	GET  /api/v1/system/info
//	POST /api/v1/sync
func NewEngine(cfg Config, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		logger.GinMiddleware(log),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.Secure(middleware.DefaultSecurityConfig()),
		middleware.BodyLimit(cfg.MaxBodySize),
	)
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	}

	r := NewRouter(engine)

	root := NewDomainGroup("system", "/")
	root.GET("/health", h.System.Health)
	root.GET("/ping", h.System.Ping)
	if h.Webhook != nil {
		root.POST("/payment-completed", h.Webhook.PaymentCompleted)
	}
	r.RegisterRoot(root)

	r.Register(NewDomainGroup("system", "/system").GET("/info", h.System.GetSystemInfo))
	if h.Sync != nil {
		r.Register(NewDomainGroup("sync", "/sync").POST("", h.Sync.RunSync))
	}

	r.Setup()
	return engine, nil
}
