package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/http/middleware"
	"github.com/clawplay/platform/internal/ratelimit"
	"github.com/clawplay/platform/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type grantReq struct {
	AgentName string         `json:"agent_name"`
	Amount    int64          `json:"amount"`
	Reason    string         `json:"reason"`
	Detail    map[string]any `json:"detail"`
}

// POST /v1/credits/grant - a trusted internal app awards bonus credit to an
// agent's owner. The ledger applies no throttle on this path, so the grant
// cap is enforced here, per app per agent per hour.
func grantHandler(credits *credit.Service, agents repository.AgentsRepository, limiter *ratelimit.Limiter, maxAmount int64, grantsPerHour int) echo.HandlerFunc {
	return func(c echo.Context) error {
		appSlug, ok := middleware.AppSlugFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthorized"})
		}

		var req grantReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		}

		req.AgentName = strings.TrimSpace(req.AgentName)
		req.Reason = strings.TrimSpace(req.Reason)
		if req.AgentName == "" {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "agent_name is required"})
		}
		if req.Amount <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "amount must be a positive integer"})
		}
		if req.Amount > maxAmount {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "amount exceeds the per-grant maximum"})
		}
		if req.Reason == "" {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "reason is required"})
		}

		if grantsPerHour > 0 {
			res := limiter.Check("credit_grant:"+appSlug+":"+req.AgentName, grantsPerHour, time.Hour)
			if !res.Allowed {
				return middleware.TooManyRequests(c, res)
			}
		}

		agent, err := agents.GetByName(c.Request().Context(), req.AgentName)
		if err != nil {
			log.Errorf("agent lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to grant credit"})
		}
		if agent == nil || !agent.Claimed() {
			return c.JSON(http.StatusNotFound, map[string]any{
				"success": false,
				"error":   "agent not found",
				"hint":    "verify the agent_name exists and has an owner",
			})
		}

		balance, err := credits.GrantBonusCredit(
			c.Request().Context(),
			*agent.UserID,
			req.Amount,
			appSlug,
			req.Reason,
			req.Detail,
			agent.ID,
		)
		if err != nil {
			log.Errorf("bonus grant failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to grant credit"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"balance": balance},
		})
	}
}
