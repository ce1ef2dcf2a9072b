// Package router assembles the gin engine and mounts handlers under the versioned API prefix.
package router

import (
	"time"

	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultAPIVersion = "v1"

// RouteRegistrar is implemented by every handler that owns routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them on Setup.
// Versioned registrars live under /api/{version} behind the group middleware;
// public ones are mounted at the root without it.
type Router struct {
	engine    *gin.Engine
	version   string
	groupMW   []gin.HandlerFunc
	versioned []RouteRegistrar
	public    []RouteRegistrar
}

type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1" prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

// WithGroupMiddleware runs handlers on versioned routes only
func WithGroupMiddleware(handlers ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.groupMW = append(r.groupMW, handlers...) }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: defaultAPIVersion}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.versioned = append(r.versioned, registrar)
	return r
}

func (r *Router) RegisterPublic(registrar RouteRegistrar) *Router {
	r.public = append(r.public, registrar)
	return r
}

// Setup mounts every collected registrar on the engine
func (r *Router) Setup() {
	mount(r.engine.Group(""), r.public)
	mount(r.engine.Group("/api/"+r.version, r.groupMW...), r.versioned)
}

func mount(group *gin.RouterGroup, registrars []RouteRegistrar) {
	for _, reg := range registrars {
		reg.RegisterRoutes(group)
	}
}

// EngineConfig is what NewEngine needs to build the global middleware stack
type EngineConfig struct {
	HTTP        config.HTTPConfig
	Tracing     middleware.TracingConfig
	Logger      *zap.Logger
	ReleaseMode bool
}

// NewEngine returns a gin engine with the global middleware installed.
// Tracing comes first so that the request id, access log and recovery all run inside the span.
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if proxies := cfg.HTTP.TrustedProxies; len(proxies) > 0 {
		if err := engine.SetTrustedProxies(proxies); err != nil {
			log.Warn("Ignoring invalid trusted proxies", zap.Strings("proxies", proxies), zap.Error(err))
		}
	}

	engine.Use(
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.SpanAttributes(),
		middleware.CORSWithConfig(corsFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	return engine
}

// corsFrom overlays the configured CORS lists on the defaults. Origins are never defaulted.
func corsFrom(h config.HTTPConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowOrigins = h.CORSAllowOrigins
	if len(h.CORSAllowMethods) > 0 {
		c.AllowMethods = h.CORSAllowMethods
	}
	if len(h.CORSAllowHeaders) > 0 {
		c.AllowHeaders = h.CORSAllowHeaders
	}
	c.MaxAge = 12 * time.Hour
	return c
}
