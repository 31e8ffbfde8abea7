package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common provider error types shared by the push, SMS and WhatsApp clients.

// RateLimitError represents a 429 rate limit error from a provider.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a provider.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a provider.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// ConfigError reports missing or invalid provider credentials.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Provider, e.Reason)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// maxErrorBody bounds how much of a provider error body ends up in messages.
const maxErrorBody = 512

// classifyResponse turns a non-2xx provider response into a typed error.
//
// Returns:
//   - nil: 2xx status
//   - *RateLimitError: 429
//   - *ClientError: other 4xx
//   - *ServerError: 5xx
func classifyResponse(provider string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	text := truncateText(strings.TrimSpace(string(body)), maxErrorBody, "...")

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    provider + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error (%d): %s", provider, resp.StatusCode, text),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error (%d): %s", provider, resp.StatusCode, text),
		}
	}

	return fmt.Errorf("%s: unexpected status code %d: %s", provider, resp.StatusCode, text)
}

// extractRetryAfter reads the Retry-After header in seconds.
// Returns 5s when the header is missing or malformed.
func extractRetryAfter(resp *http.Response) time.Duration {
	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// truncateText truncates text to maxRunes characters.
// If truncated, appends suffix to indicate continuation.
func truncateText(text string, maxRunes int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}

	truncateAt := maxRunes - len([]rune(suffix))
	if truncateAt < 0 {
		truncateAt = 0
	}

	return string(runes[:truncateAt]) + suffix
}

// TruncateText is the exported form of truncateText used by message formatters.
func TruncateText(text string, maxRunes int, suffix string) string {
	return truncateText(text, maxRunes, suffix)
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}
