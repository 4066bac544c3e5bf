package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clawplay/platform/internal/config"
	echo "github.com/labstack/echo/v4"
)

const ctxAppSlug = "app_slug"

// AppSlugFromCtx extracts the authenticated internal app slug.
func AppSlugFromCtx(c echo.Context) (string, bool) {
	s, ok := c.Get(ctxAppSlug).(string)
	return s, ok && s != ""
}

// InternalAppMiddleware authenticates trusted partner apps by a static
// per-app credential from config (X-App-Slug / X-App-Key headers). These
// callers may grant bonus credits.
func InternalAppMiddleware(apps []config.InternalApp) echo.MiddlewareFunc {
	keys := make(map[string]string, len(apps))
	for _, a := range apps {
		if a.Slug != "" && a.Key != "" {
			keys[a.Slug] = a.Key
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug := strings.TrimSpace(c.Request().Header.Get("X-App-Slug"))
			key := strings.TrimSpace(c.Request().Header.Get("X-App-Key"))
			if slug == "" || key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing app credentials"})
			}

			want, ok := keys[slug]
			if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid app credentials"})
			}

			c.Set(ctxAppSlug, slug)
			return next(c)
		}
	}
}
