package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/rtcmas/internal/health"
	"github.com/jmerrifield20/rtcmas/internal/identity"
	"github.com/jmerrifield20/rtcmas/internal/ledger"
)

// RouterConfig collects everything NewRouter wires together.
type RouterConfig struct {
	Pipeline Pipeline
	Ledger   ledger.Reader

	// Tokens guards POST /api/v1/incidents. When nil the route is not mounted.
	Tokens  *identity.TokenIssuer
	Checker *health.Checker

	CORSOrigins  []string
	RateLimitRPS float64

	// Done stops background goroutines started by middleware.
	Done   <-chan struct{}
	Logger *zap.Logger
}

// NewRouter builds the dashboard's gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(dashboardTemplate)

	if len(cfg.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}
	router.Use(securityHeaders())
	router.Use(bodyLimit(maxBodyBytes))
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS * 2)
		if burst < 1 {
			burst = 1
		}
		router.Use(RateLimiter(cfg.RateLimitRPS, burst, cfg.Done))
	}
	router.Use(requestLogger(logger))
	router.Use(PrometheusMiddleware())

	h := NewHandler(cfg.Pipeline, cfg.Checker, logger)

	router.GET("/", h.Index)
	router.GET("/healthz", h.Healthz)
	router.GET("/metrics", MetricsHandler())

	api := router.Group("/api")
	{
		api.GET("/incidents", h.Incidents)
		api.GET("/incidents/:id", h.Incident)
		api.GET("/projection", h.Projection)
		api.GET("/summary", h.Summary)
	}

	v1 := router.Group("/api/v1")
	NewLedgerHandler(cfg.Ledger, logger).Register(v1)
	if cfg.Tokens != nil {
		v1.POST("/incidents", identity.RequireOperator(cfg.Tokens, identity.ScopeIncidentsWrite), h.Ingest)
	} else {
		logger.Warn("auth.operator_secret not set, incident submission disabled")
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return router
}
