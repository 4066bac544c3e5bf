package middleware

import (
	"net/http"
	"strings"

	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/repository"
	"github.com/clawplay/platform/internal/util"
	echo "github.com/labstack/echo/v4"
)

const ctxAgent = "agent"

// TokenPrefix marks plaintext agent tokens; only their SHA-256 digest is
// stored server-side.
const TokenPrefix = "clawplay_"

// AgentFromCtx extracts the authenticated agent set by AgentTokenMiddleware.
func AgentFromCtx(c echo.Context) (*model.Agent, bool) {
	a, ok := c.Get(ctxAgent).(*model.Agent)
	return a, ok && a != nil
}

// agentToken pulls the plaintext token from X-Clawplay-Token or a bearer
// Authorization header.
func agentToken(c echo.Context) string {
	if t := strings.TrimSpace(c.Request().Header.Get("X-Clawplay-Token")); t != "" {
		return t
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

// AgentTokenMiddleware authenticates agent requests by token digest lookup.
// On success it stores the agent in context; handlers decide whether an
// unclaimed agent (no owner yet) may proceed.
func AgentTokenMiddleware(agents repository.AgentsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := agentToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing agent token"})
			}
			if !strings.HasPrefix(token, TokenPrefix) {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token format"})
			}

			agent, err := agents.GetByTokenHash(c.Request().Context(), util.HashToken(token))
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "auth error"})
			}
			if agent == nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid token"})
			}

			c.Set(ctxAgent, agent)
			return next(c)
		}
	}
}
