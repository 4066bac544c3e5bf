package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/clawplay/platform/internal/config"
	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/http/middleware"
	"github.com/clawplay/platform/internal/metrics"
	"github.com/clawplay/platform/internal/proxy"
	"github.com/clawplay/platform/internal/ratelimit"
	"github.com/clawplay/platform/internal/repository"
	"github.com/clawplay/platform/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

// NewServer wires repositories, the in-process rate limiter, the credit
// ledger, and all routes. events may be nil (no analytics stream); rds may be
// nil (no leaderboard cache).
func NewServer(cfg config.Config, pgDB *sqlx.DB, rds *redis.Client, events credit.Publisher, zlog *zap.Logger) *Server {
	// repos (Postgres)
	creditsRepo := repository.NewCreditsRepository(pgDB)
	agentsRepo := repository.NewAgentsRepository(pgDB)

	// one limiter instance shared by middleware and the passive-earn throttle
	limiter := ratelimit.New()

	creditSvc := credit.New(creditsRepo, limiter, cfg.Credits.Awards, events, zlog)

	upstream := proxy.NewUpstream(
		cfg.Upstream.BaseURL,
		cfg.Upstream.TimeoutMs,
		cfg.Upstream.Breaker.FailThreshold,
		cfg.Upstream.Breaker.OpenForMs,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(
		echoMid.Recover(),
		echoMid.Logger(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.NewULID}),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.AgentTokenMiddleware(agentsRepo)
	rlAgent := middleware.RateLimit(limiter, "agent", cfg.RateLimit.AgentPerMinute, time.Minute,
		func(c echo.Context) (string, bool) {
			a, ok := middleware.AgentFromCtx(c)
			if !ok {
				return "", false
			}
			return "agent:" + a.ID, true
		})
	rlUser := middleware.RateLimit(limiter, "user", cfg.RateLimit.UserPerMinute, time.Minute,
		func(c echo.Context) (string, bool) {
			a, ok := middleware.AgentFromCtx(c)
			if !ok || !a.Claimed() {
				return "", false
			}
			return "user_tokens:" + *a.UserID, true
		})
	rlIP := middleware.RateLimit(limiter, "ip", cfg.RateLimit.IPPerMinute, time.Minute,
		func(c echo.Context) (string, bool) {
			return "leaderboard:" + middleware.ClientIP(c), true
		})

	// routes
	v1 := e.Group("/v1")
	v1.GET("/credits/balance", balanceHandler(creditSvc), authMW, rlAgent)
	v1.GET("/credits/transactions", transactionsHandler(creditsRepo), authMW, rlUser)
	v1.GET("/credits/leaderboard", leaderboardHandler(creditsRepo, rds), rlIP)
	v1.POST("/credits/grant",
		grantHandler(creditSvc, agentsRepo, limiter, cfg.Credits.GrantMaxAmount, cfg.RateLimit.GrantPerHour),
		middleware.InternalAppMiddleware(cfg.Apps))
	v1.Any("/apps/xtrade/*", xtradeProxyHandler(upstream, creditSvc, agentsRepo, limiter, cfg.RateLimit.ProxyPerMinute, cfg.Upstream.PublicPaths))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
