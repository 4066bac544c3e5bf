package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/http/middleware"
	"github.com/clawplay/platform/internal/metrics"
	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/proxy"
	"github.com/clawplay/platform/internal/ratelimit"
	"github.com/clawplay/platform/internal/repository"
	"github.com/clawplay/platform/internal/util"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const xtradeSlug = "xtrade"

func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// xtradeProxyHandler relays trading API calls to the partner upstream.
// Market-data paths are public and limited per caller IP; everything else
// requires an agent token and is limited per agent. Mutating authenticated
// calls dispatch a fire-and-forget passive credit for the agent's owner; the
// primary request never waits on or fails with it.
func xtradeProxyHandler(up *proxy.Upstream, credits *credit.Service, agents repository.AgentsRepository, limiter *ratelimit.Limiter, proxyPerMinute int, publicPaths []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Param("*")

		var agent *model.Agent
		if token := strings.TrimSpace(c.Request().Header.Get("X-Clawplay-Token")); token != "" {
			if !strings.HasPrefix(token, "clawplay_") {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token format"})
			}
			a, err := agents.GetByTokenHash(c.Request().Context(), util.HashToken(token))
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "auth error"})
			}
			if a == nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token"})
			}
			agent = a
		}

		public := isPublicPath(path, publicPaths)
		if agent == nil && !public {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "missing agent token",
				"hint":    "include the X-Clawplay-Token header",
			})
		}

		if proxyPerMinute > 0 {
			var key string
			if public {
				key = "xtrade_public:" + middleware.ClientIP(c)
			} else {
				key = "xtrade_proxy:" + agent.ID
			}
			res := limiter.Check(key, proxyPerMinute, time.Minute)
			if !res.Allowed {
				metrics.RateLimitDecisionsTotal.WithLabelValues("proxy", "limited").Inc()
				return middleware.TooManyRequests(c, res)
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues("proxy", "allowed").Inc()
		}

		req := c.Request()
		header := make(http.Header)
		for _, k := range []string{"Content-Type", "Accept", "Accept-Encoding"} {
			if v := req.Header.Get(k); v != "" {
				header.Set(k, v)
			}
		}
		if agent != nil {
			header.Set("X-Agent-Name", agent.Name)
		}

		res, err := up.Forward(req.Context(), req.Method, path, req.URL.RawQuery, header, req.Body)
		if err != nil {
			metrics.ProxyRequestsTotal.WithLabelValues("error").Inc()
			if err == proxy.ErrUpstreamUnavailable {
				return c.JSON(http.StatusServiceUnavailable, map[string]any{"success": false, "error": "trading service unavailable"})
			}
			log.Errorf("xtrade proxy failed path=%s: %v", path, err)
			return c.JSON(http.StatusBadGateway, map[string]any{"success": false, "error": "upstream error"})
		}
		defer res.Body.Close()

		metrics.ProxyRequestsTotal.WithLabelValues(strconv.Itoa(res.StatusCode/100) + "xx").Inc()

		if agent != nil && agent.Claimed() && res.StatusCode < 400 {
			if err := agents.TouchLastSeen(c.Request().Context(), agent.ID, xtradeSlug); err != nil {
				log.Warnf("touch last seen failed agent=%s: %v", agent.ID, err)
			}
			// only trading actions earn; market-data polling does not
			if req.Method == http.MethodPost || req.Method == http.MethodDelete {
				credits.DispatchPassiveEarn(*agent.UserID, xtradeSlug, agent.ID)
			}
		}

		contentType := res.Header.Get("Content-Type")
		if contentType == "" {
			contentType = echo.MIMEApplicationJSON
		}
		return c.Stream(res.StatusCode, contentType, res.Body)
	}
}
