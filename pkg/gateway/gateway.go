// Package gateway exposes the HTTP surface of studyroomd: auth, room
// management, health, stats, and the WebSocket entry point.
package gateway

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/studysignal/studyroomd/pkg/relay"
	"github.com/studysignal/studyroomd/pkg/store"
	"github.com/studysignal/studyroomd/pkg/token"
)

// Config carries the environment-driven settings the gateway needs.
type Config struct {
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; RateBurst is the
	// bucket size.
	RateLimit     float64
	RateBurst     int
	StatsPassword string
}

type Gateway struct {
	log       *logrus.Logger
	tokens    *token.Service
	store     store.Store
	relay     *relay.Relay
	ws        http.Handler
	cfg       Config
	startedAt time.Time
}

func New(log *logrus.Logger, tokens *token.Service, st store.Store, r *relay.Relay, ws http.Handler, cfg Config) *Gateway {
	return &Gateway{
		log:       log,
		tokens:    tokens,
		store:     st,
		relay:     r,
		ws:        ws,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Router builds the echo instance with middleware and routes.
func (g *Gateway) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: g.cfg.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(g.cfg.RateLimit),
			Burst: g.cfg.RateBurst,
		},
	)))

	e.POST("/auth/register", g.register)
	e.POST("/auth/login", g.login)
	e.POST("/rooms/create", g.createRoom, g.requireToken)
	e.POST("/rooms/:id/join", g.joinRoom, g.requireToken)
	e.GET("/rooms", g.listRooms)
	e.GET("/health", g.health)
	e.GET("/stats", g.stats)
	e.GET("/ws", echo.WrapHandler(g.ws))

	return e
}

func (g *Gateway) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(g.startedAt).String(),
	})
}

// stats reports relay statistics, gated by the configured stats
// password. With no password configured the endpoint does not exist.
func (g *Gateway) stats(c echo.Context) error {
	if g.cfg.StatsPassword == "" {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if c.Request().Header.Get("X-Stats-Password") != g.cfg.StatsPassword {
		return c.JSON(http.StatusUnauthorized, errResponse{Error: "bad stats password"})
	}
	return c.JSON(http.StatusOK, g.relay.Stats())
}

type errResponse struct {
	Error string `json:"error"`
}

// internalError logs the detail server-side and hands the caller a
// generic message.
func (g *Gateway) internalError(c echo.Context, err error) error {
	g.log.WithFields(logrus.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Request failed")
	return c.JSON(http.StatusInternalServerError, errResponse{Error: "internal error"})
}
