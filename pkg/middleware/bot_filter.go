package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/models"
)

// BotFilterConfig holds configuration for the bot heuristic gate.
type BotFilterConfig struct {
	// Patterns are matched case-insensitively as substrings of the
	// User-Agent header.
	Patterns []string
}

// DefaultBotPatterns returns the User-Agent substrings that are treated as
// automated clients. This is advisory abuse mitigation, not a security
// boundary: legitimate automation (uptime checks, HTTP libraries) will be
// rejected too. Known limitation, kept on purpose to save Stripe quota.
func DefaultBotPatterns() []string {
	return []string{
		"bot", "crawler", "spider", "pingdom", "headless", "facebook",
		"whatsapp", "linkedinbot", "slackbot", "telegram", "twitter",
		"semrush", "ahrefsbot", "bingbot", "googlebot", "yandex", "baidu",
	}
}

// BotFilter returns an Echo middleware that rejects requests whose
// User-Agent matches any configured pattern with 403.
func BotFilter(config BotFilterConfig) echo.MiddlewareFunc {
	patterns := config.Patterns
	if len(patterns) == 0 {
		patterns = DefaultBotPatterns()
	}

	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userAgent := strings.ToLower(c.Request().UserAgent())

			for _, pattern := range lowered {
				if strings.Contains(userAgent, pattern) {
					return c.JSON(http.StatusForbidden, models.ErrorResponse{
						Error: "forbidden",
					})
				}
			}

			return next(c)
		}
	}
}
