package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"FeedbackAnalyzer/internal/ports"
)

// HealthChecker reports whether a dependency is reachable. *sql.DB satisfies it.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Deps wires the core ports into the HTTP surface.
type Deps struct {
	Processor ports.FeedbackProcessor
	Bulk      ports.BulkScheduler
	Reader    ports.FeedbackReader
	Health    HealthChecker
	Metrics   http.Handler
	Logger    *slog.Logger
	RateLimit float64
	RateBurst int
}

// Handler holds the request handlers for the feedback service.
type Handler struct {
	processor ports.FeedbackProcessor
	bulk      ports.BulkScheduler
	reader    ports.FeedbackReader
	health    HealthChecker
	logger    *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	h := &Handler{
		processor: deps.Processor,
		bulk:      deps.Bulk,
		reader:    deps.Reader,
		health:    deps.Health,
		logger:    deps.Logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	router.GET("/healthz", h.healthz)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := router.Group("/")
	if deps.RateLimit > 0 {
		api.Use(rateLimiter(deps.RateLimit, deps.RateBurst))
	}

	api.POST("/", h.createFeedback)
	api.POST("/feedback", h.createFeedback)
	api.POST("/submissions", h.createSubmission)

	api.GET("/feedback", h.listFeedback)
	api.GET("/feedback/:id", h.getFeedback)
	api.GET("/documents", h.listDocuments)
	api.GET("/sections", h.listSections)
	api.GET("/keywords", h.listKeywords)
	api.GET("/analytics", h.analytics)
	api.GET("/stats", h.stats)

	return router
}

func rateLimiter(limit float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(ctx *gin.Context) {
		if limiter.Allow() {
			ctx.Next()
		} else {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests"})
		}
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if logger == nil {
			return
		}

		status := ctx.Writer.Status()
		level := slog.LevelDebug
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Log(ctx.Request.Context(), level, "http request",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"status", status,
			"duration", time.Since(start),
			"client", ctx.ClientIP(),
		)
	}
}
