package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/nursing-api/internal/handler/prometheus"
	"github.com/jwalitptl/nursing-api/internal/middleware"
	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	RateLimit    rate.Limit
	RateBurst    int
	Timeout      time.Duration
	MaxBodyBytes int64
	// Release switches gin to release mode.
	Release bool
}

// Handlers groups the route owners by the access they require.
type Handlers struct {
	Health    Handler
	Metrics   *prometheus.Handler
	Protected []Handler
	Admin     []Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	audit    *middleware.AuditMiddleware
	handlers Handlers
	limiter  *middleware.RateLimiter
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	audit *middleware.AuditMiddleware,
	handlers Handlers,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	if config.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.Timeout(config.Timeout),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.ErrorHandler(),
	)

	r := &Router{
		engine:   engine,
		auth:     auth,
		audit:    audit,
		handlers: handlers,
	}
	if config.RateLimit > 0 {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
	}
	return r
}

func (r *Router) Setup() {
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	if r.limiter != nil {
		protected.Use(r.limiter.RateLimit())
	}
	if r.audit != nil {
		protected.Use(r.audit.AccessLog(model.AuditEntityPatient, "/api/v1/patients/:id"))
	}
	for _, h := range r.handlers.Protected {
		h.RegisterRoutes(protected)
	}

	admin := protected.Group("")
	admin.Use(r.auth.RequireRole(model.RoleAdmin))
	for _, h := range r.handlers.Admin {
		h.RegisterRoutes(admin)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
