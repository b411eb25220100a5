package http

import (
	"context"
	"time"

	"github.com/dkeye/barflow/internal/adapters/signal"
	"github.com/dkeye/barflow/internal/app/orch"
	"github.com/dkeye/barflow/internal/config"
	"github.com/dkeye/barflow/internal/ledger"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionNameKey = "name"

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.GetString("client_token")).
			Msg("request")
	}
}

type Handlers struct {
	Ledger *ledger.Ledger
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestLogger())
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BarflowSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/health", h.health)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	orders := api.Group("/orders")
	orders.POST("", h.createOrder)
	orders.GET("/front", h.listFront)
	orders.GET("/bar", h.listBar)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id/claim", h.claimOrder)
	orders.PUT("/:id/served", h.completeOrder)

	api.GET("/presence", h.presence)
	api.GET("/presence/connections", h.connections)
	api.DELETE("/presence/connections/:id", h.kick)
	api.GET("/snapshot", h.snapshot)
	api.POST("/notices", h.notice)
	api.POST("/stock/signals", h.stockSignal)
	api.PUT("/session/name", h.setSessionName)

	api.GET("/ws", func(c *gin.Context) {
		name, _ := sessions.Default(c).Get(sessionNameKey).(string)
		h.Signal.HandleSignal(ctx, c, name)
	})

	return r
}
