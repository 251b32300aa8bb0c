package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/missfitcoaching/payments-api/pkg/models"
)

// validatedOriginKey is the context key under which the validated request
// origin is stored for downstream handlers.
const validatedOriginKey = "validated_origin"

// OriginConfig holds configuration for the origin allow-list gate.
type OriginConfig struct {
	// AllowedOrigins are full origins (scheme://host[:port]). A request
	// origin is accepted when it matches exactly or its host is a
	// subdomain of an allowed host on the same scheme.
	AllowedOrigins []string
}

// OriginCheck returns an Echo middleware that enforces the origin
// allow-list and answers CORS preflights.
//
// Policy: a POST without an Origin header falls back to the Referer host;
// if neither is present the request is rejected. The older permissive
// treat-absent-as-allowed behavior is gone.
func OriginCheck(config OriginConfig) echo.MiddlewareFunc {
	allowed := parseOrigins(config.AllowedOrigins)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := requestOrigin(c.Request())

			if origin == "" || !originAllowed(origin, allowed) {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error: "forbidden",
				})
			}

			res := c.Response()
			res.Header().Set("Access-Control-Allow-Origin", origin)
			res.Header().Add("Vary", "Origin")

			// Preflight terminates here; no further gates apply.
			if c.Request().Method == http.MethodOptions {
				res.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
				res.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				res.Header().Set("Access-Control-Max-Age", "86400")
				return c.NoContent(http.StatusNoContent)
			}

			c.Set(validatedOriginKey, origin)
			return next(c)
		}
	}
}

// ValidatedOrigin returns the origin stored by OriginCheck, or empty if the
// request never passed the origin gate.
func ValidatedOrigin(c echo.Context) string {
	origin, _ := c.Get(validatedOriginKey).(string)
	return origin
}

type allowedOrigin struct {
	scheme string
	host   string
}

func parseOrigins(origins []string) []allowedOrigin {
	parsed := make([]allowedOrigin, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		parsed = append(parsed, allowedOrigin{scheme: u.Scheme, host: u.Host})
	}
	return parsed
}

// requestOrigin resolves the effective origin of a request: the Origin
// header, or the Referer's scheme://host as a fallback for clients that
// omit Origin on same-origin posts.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}

	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}

	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func originAllowed(origin string, allowed []allowedOrigin) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	for _, a := range allowed {
		if u.Scheme != a.scheme {
			continue
		}
		if u.Host == a.host || strings.HasSuffix(u.Host, "."+a.host) {
			return true
		}
	}
	return false
}
