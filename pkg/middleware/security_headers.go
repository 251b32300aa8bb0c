package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeadersConfig holds configuration for the security headers
// middleware. Empty fields fall back to the defaults.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	ReferrerPolicy        string
	CacheControl          string
}

// DefaultSecurityHeadersConfig returns the default security headers for the
// payments API. Responses are never cacheable: they carry session ids and
// per-origin CORS headers.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		CacheControl:          "no-store, no-cache, must-revalidate, proxy-revalidate",
	}
}

// SecurityHeaders returns an Echo middleware that sets security and
// no-cache headers on every response.
func SecurityHeaders(config SecurityHeadersConfig) echo.MiddlewareFunc {
	defaults := DefaultSecurityHeadersConfig()

	if config.ContentSecurityPolicy == "" {
		config.ContentSecurityPolicy = defaults.ContentSecurityPolicy
	}
	if config.ReferrerPolicy == "" {
		config.ReferrerPolicy = defaults.ReferrerPolicy
	}
	if config.CacheControl == "" {
		config.CacheControl = defaults.CacheControl
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			res.Header().Set("Content-Security-Policy", config.ContentSecurityPolicy)
			res.Header().Set("Referrer-Policy", config.ReferrerPolicy)
			res.Header().Set("Cache-Control", config.CacheControl)
			res.Header().Set("Pragma", "no-cache")
			res.Header().Set("X-Content-Type-Options", "nosniff")
			return next(c)
		}
	}
}
