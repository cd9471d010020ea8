// Package httpapi is the REST and WebSocket gateway in front of the engine.
package httpapi

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/otel"
	"github.com/erain9/runebook/pkg/server"
)

// Config controls the gateway's middleware
type Config struct {
	// JWTSecret enables HS256 bearer auth on mutating routes when set
	JWTSecret string
	// RateLimit is requests per second per client IP; zero disables limiting
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string
}

// NewRouter builds the gin engine. hub may be nil, in which case /ws is not
// registered.
func NewRouter(engine server.Engine, hub *Hub, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware())
	r.Use(metricsMiddleware())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if cfg.RateLimit > 0 {
		r.Use(NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware())
	}

	h := &handlers{engine: engine}

	r.GET("/health", h.health)
	if hub != nil {
		r.GET("/ws", hub.ServeWS)
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/addresses/:address/orders", h.getOrdersByAddress)
		v1.GET("/runes/:runeId/book", h.getOrderBook)
		v1.GET("/stats", h.getStats)

		mutating := v1.Group("")
		if cfg.JWTSecret != "" {
			mutating.Use(AuthMiddleware(cfg.JWTSecret))
		}
		mutating.POST("/orders", h.placeOrder)
		mutating.DELETE("/orders/:id", h.cancelOrder)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func metricsMiddleware() gin.HandlerFunc {
	metrics, err := otel.GetHTTPServerMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("HTTP metrics disabled")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		end := metrics.Begin(c.Request.Context(), route)
		c.Next()
		end(c.Writer.Status())
	}
}
