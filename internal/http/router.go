// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, actor identity, logging/redaction, panic
// recovery, compression, metrics, CORS, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → identity → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
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

	"github.com/tbourn/go-design-engagement/docs"
	"github.com/tbourn/go-design-engagement/internal/config"
	"github.com/tbourn/go-design-engagement/internal/domain"
	"github.com/tbourn/go-design-engagement/internal/http/handlers"
	"github.com/tbourn/go-design-engagement/internal/http/middleware"
	"github.com/tbourn/go-design-engagement/internal/repo"
	"github.com/tbourn/go-design-engagement/internal/services"
	"github.com/tbourn/go-design-engagement/internal/txn"
)

// idempotencyStore adapts the repository free functions to
// handlers.IdempotencyStore.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency; a miss is (nil, nil).
func (s idempotencyStore) Lookup(ctx context.Context, userID, designID, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, designID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// HasReplay implements middleware.ReplayChecker.
func (s idempotencyStore) HasReplay(ctx context.Context, userID, designID, key string, now time.Time) (bool, error) {
	rec, err := s.Lookup(ctx, userID, designID, key, now)
	return rec != nil, err
}

// Save proxies repo.CreateIdempotency. A concurrent save of the same key is
// not an error: the first stored response wins.
func (s idempotencyStore) Save(ctx context.Context, userID, designID, key, operation string, status int, body []byte) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, designID, key, operation, status, body, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Services bundles the application services built from configuration.
type Services struct {
	Engagement *services.EngagementService
	Feed       *services.FeedService
}

// NewServices builds the engagement and feed services on db: one transaction
// manager with the configured retry budget, and a notifier writing to the
// notifications table behind a circuit breaker.
func NewServices(db *gorm.DB, cfg config.Config) Services {
	e := cfg.Engagement
	tx := txn.New(db, txn.Options{
		MaxAttempts: e.TxMaxAttempts,
		BaseBackoff: e.TxBaseBackoff,
		MaxBackoff:  e.TxMaxBackoff,
	})
	notifier := services.NewNotifier(
		&services.GormSink{DB: db},
		services.PrefixSynthetic(e.SyntheticPrefixes),
		services.NotifierOptions{
			BreakerFailures: uint32(cfg.Notify.BreakerFailures),
			BreakerTimeout:  cfg.Notify.BreakerTimeout,
		},
	)
	return Services{
		Engagement: &services.EngagementService{
			DB:       db,
			Tx:       tx,
			Notifier: notifier,
			Cooldown: e.BoostCooldown,
		},
		Feed: &services.FeedService{
			DB:              db,
			DefaultPageSize: e.GalleryPageSize,
			MaxPageSize:     e.MaxPageSize,
			RankingLimit:    e.RankingLimit,
		},
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), actor identity,
// idempotency and rate limiting, compression, CORS and security headers,
// health, metrics and docs endpoints, and then mounts the versioned public
// API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ActorIdentity: X-User-ID → context
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Gzip (not on /metrics, which compresses itself)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per actor/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Acting identity from the upstream identity provider
	r.Use(middleware.ActorIdentity())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (64 KiB; engagement payloads are tiny)
	r.Use(limitBody(64 << 10))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 9) Idempotency validation (before rate limiting)
	store := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 128, // idempotency.key column width
		},
		store,
	))

	// 10) Token-bucket rate limiter per actor/IP; writes have their own budget
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:        cfg.RateRPS,
		Burst:      cfg.RateBurst,
		WriteRPS:   cfg.RateWriteRPS,
		WriteBurst: cfg.RateWriteBurst,
	})
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
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

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	svc := NewServices(db, cfg)
	h := handlers.New(svc.Engagement, svc.Feed, store)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Feed & detail
		api.GET("/designs", h.ListDesigns)
		api.GET("/designs/:id", h.GetDesign)
		api.GET("/ranking", h.Ranking)

		// Likes
		api.GET("/designs/:id/like", h.GetLikeState)
		api.POST("/designs/:id/like", h.ToggleLike)
		api.PUT("/designs/:id/like", h.SetLike)

		// Boosts
		api.GET("/designs/:id/boost", h.GetBoostState)
		api.POST("/designs/:id/boost", h.Boost)
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
