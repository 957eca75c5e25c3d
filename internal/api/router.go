package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/explorer/internal/dbpool"
	"github.com/persistorai/explorer/internal/middleware"
	"github.com/persistorai/explorer/internal/security"
	"github.com/persistorai/explorer/internal/tracing"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Summaries   SummaryReader
	Catalog     CatalogLister
	Refreshes   RefreshQueue
	Location    *time.Location
	AdminToken  string
	CORSOrigins []string
	CacheMaxAge time.Duration
	Version     string
}

// Router-level limits.
const (
	maxBodySize  = 64 << 10 // 64 KB; refresh options are the only body
	rateLimit    = 50       // requests per second per IP
	rateBurst    = 100      // token bucket burst size
	refreshRate  = 1.0 / 60 // refresh requests per second per product
	refreshBurst = 2
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.Tracing(tracing.Tracer()))
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders(deps.CacheMaxAge))
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst, middleware.ByClientIP).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, log, deps.Version)
	products := NewProductHandler(deps.Summaries, deps.Location, log)
	refresh := NewRefreshHandler(deps.Catalog, deps.Refreshes, log)

	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Summary reads are public.
	api.GET("/products", products.List)
	api.GET("/products/:name", products.Get)
	api.GET("/products/:name/overview", products.Overview)
	api.GET("/products/:name/regions", products.Regions)
	api.GET("/products/:name/regions/:code/datasets", products.RegionDatasets)

	// Refreshes need the admin token and are limited per product.
	refreshLimiter := middleware.NewRateLimiter(ctx, refreshRate, refreshBurst, middleware.ByProduct)
	api.POST("/products/:name/refresh",
		middleware.AdminToken(deps.AdminToken, security.NewFailureGuard(ctx, log), log),
		refreshLimiter.Handler(),
		refresh.Refresh)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
