package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrVerificationFailed is returned when the challenge provider rejects a
// token. Transport errors are wrapped separately so callers can log them
// apart, but both map to the same client-facing rejection.
var ErrVerificationFailed = errors.New("captcha verification failed")

// Verifier checks a client-supplied challenge token against the provider.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// siteverifyURL is Cloudflare Turnstile's server-side validation endpoint.
const siteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Turnstile verifies tokens against Cloudflare Turnstile.
type Turnstile struct {
	secret   string
	endpoint string
	client   *http.Client
}

// NewTurnstile creates a Turnstile verifier using the server-side secret.
// All verification calls share the given timeout.
func NewTurnstile(secret string, timeout time.Duration) *Turnstile {
	return &Turnstile{
		secret:   secret,
		endpoint: siteverifyURL,
		client:   &http.Client{Timeout: timeout},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks the token with Turnstile. The client IP is forwarded so the
// provider can bind the challenge to the requester.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) error {
	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("siteverify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var result siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(result.ErrorCodes, ", "))
	}

	return nil
}
