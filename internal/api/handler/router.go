package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/filechain/internal/health"
	"github.com/jmerrifield20/filechain/internal/upload"
	"go.uber.org/zap"
)

// multipartOverhead is the allowance on top of the upload limit for
// multipart framing and form fields.
const multipartOverhead = 1 << 20

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Service     *upload.Service
	Gateway     func(cid string) string // optional; see FileHandler.SetGateway
	Health      *health.HealthChecker   // optional; enriches /healthz
	CORSOrigins []string
	RateLimit   int // requests per second per IP; 0 disables
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with middleware and all API routes.
// Background work started for the router stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(SecurityHeaders())
	router.Use(BodyLimit(cfg.Service.MaxBytes() + multipartOverhead))
	if cfg.RateLimit > 0 {
		router.Use(RateLimiter(ctx, cfg.RateLimit, cfg.RateLimit*2))
	}
	router.Use(PrometheusMiddleware())
	router.Use(RequestLogger(cfg.Logger))

	// Multipart parts beyond this are spooled to disk by net/http.
	router.MaxMultipartMemory = cfg.Service.MaxBytes()

	router.GET("/healthz", healthz(cfg.Health))
	router.GET("/metrics", MetricsHandler())

	files := NewFileHandler(cfg.Service, cfg.Logger)
	if cfg.Gateway != nil {
		files.SetGateway(cfg.Gateway)
	}

	v1 := router.Group("/api/v1")
	NewLedgerHandler(cfg.Service.Ledger(), cfg.Logger).Register(v1)
	files.Register(v1)

	return router
}

// healthz reports liveness and, when a checker is configured, the last
// integrity check. A degraded check answers 503.
func healthz(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		report := checker.Report()
		if !report.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": report})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": report})
	}
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
