package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBotFilter(t *testing.T, userAgent string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payment", nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := BotFilter(BotFilterConfig{})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	return rec
}

func TestBotFilter_RejectsKnownBots(t *testing.T) {
	botAgents := []string{
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"Mozilla/5.0 (compatible; bingbot/2.0)",
		"Mozilla/5.0 (compatible; AhrefsBot/7.0)",
		"facebookexternalhit/1.1",
		"Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0",
		"Slackbot-LinkExpanding 1.0",
		"WhatsApp/2.23.20",
	}

	for _, ua := range botAgents {
		rec := runBotFilter(t, ua)
		assert.Equal(t, http.StatusForbidden, rec.Code, "should reject: %s", ua)
	}
}

func TestBotFilter_AllowsBrowsers(t *testing.T) {
	browserAgents := []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}

	for _, ua := range browserAgents {
		rec := runBotFilter(t, ua)
		assert.Equal(t, http.StatusOK, rec.Code, "should allow: %s", ua)
	}
}

func TestBotFilter_MatchIsCaseInsensitive(t *testing.T) {
	rec := runBotFilter(t, "MyCustomCRAWLER/1.0")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBotFilter_EmptyUserAgentAllowed(t *testing.T) {
	// An absent User-Agent matches no pattern; the origin gate still
	// stands behind this one.
	rec := runBotFilter(t, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBotFilter_CustomPatterns(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payment", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := BotFilter(BotFilterConfig{Patterns: []string{"scrapy"}})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	// Googlebot passes because the custom list replaced the defaults
	assert.Equal(t, http.StatusOK, rec.Code)
}
