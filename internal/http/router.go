// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, caller identity, idempotency and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-pickup-backend/docs"
	"github.com/tbourn/go-pickup-backend/internal/auth"
	"github.com/tbourn/go-pickup-backend/internal/config"
	"github.com/tbourn/go-pickup-backend/internal/http/handlers"
	"github.com/tbourn/go-pickup-backend/internal/http/middleware"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// allowHeaders are the request headers browsers may send cross-origin.
var allowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderGuestID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and builds the services behind them. Post-commit side effects go
// to effects; pass notify.Inline{} to run them synchronously.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. CORS and Security headers
//
// The API group then resolves the caller (Identity). Mutating routes validate
// their Idempotency-Key before the per-caller token bucket and the persistent
// quota, so replays of completed requests are charged to neither.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, effects notify.Effects, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if effects == nil {
		effects = notify.Inline{}
	}

	// Dependency injection: services ← db/config
	var verifier auth.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret, "")
	}
	resolver := services.NewIdentityResolver(db, verifier)
	idem := services.NewIdempotencyCache(db, cfg.IdempotencyTTL, cfg.IdempotencyProcessingTTL)
	limiter := services.NewRateLimiter(db, services.DefaultLimits())
	sender := notify.Fanout{notify.InboxSender{DB: db}, notify.LogSender{}}

	orderSvc := services.NewOrderService(db, idem, effects, sender, services.Pricing{
		TaxRate:         cfg.Orders.TaxRate,
		ServiceFeeCents: cfg.Orders.ServiceFeeCents,
		Currency:        cfg.Orders.Currency,
	})
	if cfg.Orders.MinLeadTime > 0 {
		orderSvc.MinLeadTime = cfg.Orders.MinLeadTime
	}
	if cfg.Orders.PickupCodeTTL > 0 {
		orderSvc.PickupCodeTTL = cfg.Orders.PickupCodeTTL
	}

	h := handlers.New(
		orderSvc,
		&services.MessageService{DB: db},
		services.NewGuestService(db, idem),
		services.NewReportService(db, idem),
	)

	idemOpts := middleware.IdempotencyOptions{
		MaxLen:  services.MaxIdempotencyKeyLen,
		OnError: handlers.FailErr,
	}
	edge := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIdentityOrIP(), handlers.FailErr).Handler()
	// Key validation runs before both limiters: a replay of a completed
	// request is answered from the cache and never charged to the quota.
	guarded := func(function string, handler gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{
			middleware.IdempotencyValidator(function, idemOpts, idem.Completed),
			edge,
			middleware.Quota(limiter, function, handlers.FailErr),
			handler,
		}
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Identity(resolver, handlers.FailErr))
	{
		// Orders
		api.POST("/orders", guarded(services.FnCreateOrder, h.CreateOrder)...)
		api.GET("/orders/:id", edge, h.GetOrder)
		api.POST("/orders/:id/status", guarded(services.FnChangeOrderStatus, h.ChangeOrderStatus)...)
		api.POST("/orders/:id/pickup-code", guarded(services.FnGeneratePickupCode, h.GeneratePickupCode)...)

		// Messages
		api.GET("/orders/:id/messages", edge, h.ListMessages)

		// Guests
		api.POST("/guests/:id/migrate", guarded(services.FnMigrateGuestData, h.MigrateGuestData)...)

		// Reports
		api.POST("/reports", guarded(services.FnReportUser, h.ReportUser)...)
	}
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted without credentials; otherwise allowed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even without an Origin header (simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
