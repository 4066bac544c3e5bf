package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/clawplay/platform/internal/model"
	"github.com/clawplay/platform/internal/repository"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

const leaderboardCacheTTL = 30 * time.Second

// GET /v1/credits/leaderboard - public ranking by balance. Pages are cached
// in Redis for a short TTL since the underlying query aggregates across
// accounts and agents.
func leaderboardHandler(credits repository.CreditsRepository, rds *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := queryInt(c, "limit", 20, 1, 100)
		offset := queryInt(c, "offset", 0, 0, 1<<30)
		ctx := c.Request().Context()

		cacheKey := "leaderboard:" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
		if rds != nil {
			if cached, err := rds.Get(ctx, cacheKey).Bytes(); err == nil {
				return c.JSONBlob(http.StatusOK, cached)
			}
		}

		entries, total, err := credits.Leaderboard(ctx, limit, offset)
		if err != nil {
			log.Errorf("leaderboard query failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to fetch leaderboard"})
		}
		if entries == nil {
			entries = []model.LeaderboardEntry{}
		}

		body, err := json.Marshal(map[string]any{
			"success": true,
			"data": map[string]any{
				"entries": entries,
				"total":   total,
			},
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to fetch leaderboard"})
		}

		if rds != nil {
			// cache fill is best-effort; a failed SET only costs a recompute
			cctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := rds.Set(cctx, cacheKey, body, leaderboardCacheTTL).Err(); err != nil {
				log.Warnf("leaderboard cache set failed: %v", err)
			}
		}

		return c.JSONBlob(http.StatusOK, body)
	}
}
