package http

import (
	"net/http"
	"strconv"

	"github.com/clawplay/platform/internal/credit"
	"github.com/clawplay/platform/internal/http/middleware"
	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// GET /v1/credits/balance - agent queries its owner's balance.
func balanceHandler(credits *credit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		agent, ok := middleware.AgentFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthorized"})
		}
		if !agent.Claimed() {
			return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "agent has no owner"})
		}

		bal, err := credits.Balance(c.Request().Context(), *agent.UserID)
		if err != nil {
			log.Errorf("balance query failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to fetch credit balance"})
		}

		return c.JSON(http.StatusOK, map[string]any{"success": true, "data": bal})
	}
}

func queryInt(c echo.Context, name string, fallback, min, max int) int {
	v := c.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// GET /v1/credits/transactions - owner's credit history, newest first.
func transactionsHandler(credits repository.CreditsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		agent, ok := middleware.AgentFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "unauthorized"})
		}
		if !agent.Claimed() {
			return c.JSON(http.StatusForbidden, map[string]any{"success": false, "error": "agent has no owner"})
		}

		limit := queryInt(c, "limit", 20, 1, 100)
		offset := queryInt(c, "offset", 0, 0, 1<<30)
		ownerID := *agent.UserID

		txs, err := credits.ListTransactions(c.Request().Context(), ownerID, limit, offset)
		if err != nil {
			log.Errorf("transactions query failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to fetch transactions"})
		}

		total, err := credits.CountTransactions(c.Request().Context(), ownerID)
		if err != nil {
			log.Errorf("transactions count failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to fetch transactions"})
		}

		if txs == nil {
			txs = []model.CreditTransaction{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"transactions": txs,
				"total":        total,
			},
		})
	}
}
