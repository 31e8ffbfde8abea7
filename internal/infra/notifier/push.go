package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"schoolnotify/internal/resilience/circuitbreaker"
)

const (
	// DefaultPushEndpoint is the Expo push send endpoint.
	DefaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

	// MaxPushBatch is the maximum number of messages per push request.
	MaxPushBatch = 100

	// Ticket statuses returned by the push gateway.
	PushTicketOK    = "ok"
	PushTicketError = "error"
)

// ErrPushBatchTooLarge is returned when SendBatch receives more than MaxPushBatch messages.
var ErrPushBatchTooLarge = errors.New("push batch exceeds provider maximum")

var pushTokenPattern = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[[A-Za-z0-9_\-]+\]$`)

// IsValidPushToken reports whether token has the Expo push token format.
func IsValidPushToken(token string) bool {
	return pushTokenPattern.MatchString(token)
}

// PushConfig contains configuration for the push gateway.
type PushConfig struct {
	// Endpoint is the bulk send URL (defaults to DefaultPushEndpoint)
	Endpoint string `yaml:"endpoint"`

	// AccessToken is the optional Expo access token for enhanced security
	AccessToken string `yaml:"access_token"`

	// Timeout is the HTTP request timeout for one batch
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles batch submissions (0 disables throttling)
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// PushMessage is one entry of the bulk request.
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Sound    string         `json:"sound,omitempty"`
}

// PushTicket is the per-message outcome, positionally aligned with the request.
type PushTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type pushResponse struct {
	Data   []PushTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// PushClient submits push batches to an Expo-compatible gateway.
type PushClient struct {
	config         PushConfig
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewPushClient creates a PushClient with the given configuration.
func NewPushClient(config PushConfig) *PushClient {
	if config.Endpoint == "" {
		config.Endpoint = DefaultPushEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &PushClient{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    NewRateLimiter(config.RequestsPerSecond, 1),
		circuitBreaker: circuitbreaker.New(circuitbreaker.PushAPIConfig()),
	}
}

// Name returns the provider name used in delivery results.
func (c *PushClient) Name() string {
	return "expo"
}

// Health returns the circuit breaker state of the push gateway.
func (c *PushClient) Health() circuitbreaker.Snapshot {
	return c.circuitBreaker.Snapshot()
}

// SendBatch submits up to MaxPushBatch messages in one request and returns the
// tickets in request order. A batch-level error means no ticket is available
// for any message of the batch.
func (c *PushClient) SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxPushBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrPushBatchTooLarge, len(messages), MaxPushBatch)
	}

	if err := c.rateLimiter.Allow(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	return circuitbreaker.Call(c.circuitBreaker, func() ([]PushTicket, error) {
		return c.post(ctx, messages)
	})
}

func (c *PushClient) post(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if err := classifyResponse("push", resp, body); err != nil {
		return nil, err
	}

	var parsed pushResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if len(parsed.Data) == 0 && len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("push gateway rejected request: %s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}

	slog.Debug("push batch submitted",
		slog.Int("messages", len(messages)),
		slog.Int("tickets", len(parsed.Data)))

	return parsed.Data, nil
}
