// Package httpapi wires the HTTP transport (Gin) to the mentor services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-backend/docs"
	"github.com/tbourn/go-mentor-backend/internal/config"
	"github.com/tbourn/go-mentor-backend/internal/http/handlers"
	"github.com/tbourn/go-mentor-backend/internal/http/middleware"
	"github.com/tbourn/go-mentor-backend/internal/repo"
)

// multipartOverhead is added to the summed file limits to leave room for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

// Deps carries what the router needs from the composition root.
type Deps struct {
	DB        *gorm.DB // idempotency lookups and list ETags; may be nil in tests
	Threads   handlers.ThreadService
	Messages  handlers.MessageService
	Judge     handlers.JudgeService
	Documents handlers.DocumentService

	// Registry receives the HTTP collectors and backs /metrics. Nil uses the
	// process-wide default registry.
	Registry *prometheus.Registry
	// Logger is the base request logger; nil uses the global zerolog logger.
	Logger *zerolog.Logger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the mentor API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. Gzip, CORS and security headers
//
// Inside the API group:
//  1. Authenticate: establish tenant, user and role
//  2. Idempotency validator (before rate limiter to allow bypass on replay)
//  3. Rate limiter (per tenant user, bypass on replay)
//  4. Body size limiter (uploads carry their own cap)
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		Logger:      d.Logger,
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	if d.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(d.Registry).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	} else {
		r.Use(middleware.NewHTTPMetrics(nil).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// 6) Compression, CORS posture, security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var stats handlers.Stats
	if d.DB != nil {
		stats = repo.Stats{DB: d.DB}
	}
	h := handlers.New(d.Threads, d.Messages, d.Judge, d.Documents, stats, handlers.Options{
		MaxContentRunes: cfg.Mentor.MaxContentRunes,
		MaxUploadBytes:  int64(cfg.Ingest.MaxFiles)*cfg.Ingest.MaxFileBytes + multipartOverhead,
	})

	lim := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByCaller()).Handler()
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(d.DB))
	body := limitBody(cfg.MaxBodyBytes)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Authenticate(middleware.AuthOptions{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.JWTIssuer,
	}))
	{
		// Threads
		api.POST("/threads", lim, body, h.CreateThread)
		api.GET("/threads", lim, h.ListThreads)
		api.GET("/threads/:id", lim, h.GetThread)
		api.POST("/threads/:id/abandon", lim, body, h.AbandonThread)
		api.POST("/threads/:id/judge", lim, body, h.JudgeThread)

		// Messages
		api.POST("/threads/:id/messages", idem, lim, body, h.PostMessage)
		api.GET("/threads/:id/messages", lim, h.ListMessages)

		// Documents
		api.POST("/mentor-lessons/:id/documents", lim, h.UploadDocuments)
		api.GET("/mentor-lessons/:id/documents", lim, h.ListDocuments)
		api.POST("/documents/:id/reingest", lim, body, h.ReingestDocument)
		api.DELETE("/documents/:id", lim, h.DeleteDocument)
	}
}

// idempotencyLookup resolves replays against the recorded results. A nil db
// disables replay detection.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, userID, threadID, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, threadID, key, now)
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

// corsMiddleware allows every origin when none is configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderTenantID, middleware.HeaderUserRole,
		middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	exposeHeaders := []string{
		"X-Request-ID", "Content-Length", "ETag", "Location",
		middleware.HeaderIdempotencyReplayed,
	}
	methods := []string{"GET", "POST", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
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
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap cause downstream body reads to error. A
// non-positive cap disables the limit.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
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
