package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"schoolnotify/internal/resilience/circuitbreaker"
)

const (
	// DefaultWhatsAppBaseURL is the Graph API root of the WhatsApp Business Cloud API.
	DefaultWhatsAppBaseURL = "https://graph.facebook.com"

	// DefaultWhatsAppAPIVersion is the Graph API version used when none is configured.
	DefaultWhatsAppAPIVersion = "v19.0"
)

// WhatsAppConfig contains credentials for the WhatsApp Business API.
type WhatsAppConfig struct {
	AccessToken   string        `yaml:"access_token"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	APIVersion    string        `yaml:"api_version"`
	BaseURL       string        `yaml:"base_url"`
	VerifyToken   string        `yaml:"verify_token"`
	AppSecret     string        `yaml:"app_secret"`
	Timeout       time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles sends (0 disables throttling)
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Configured reports whether sending is possible.
func (c WhatsAppConfig) Configured() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// WhatsAppClient sends text messages through the Business API.
type WhatsAppClient struct {
	config         WhatsAppConfig
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewWhatsAppClient validates the configuration and creates a client.
func NewWhatsAppClient(config WhatsAppConfig) (*WhatsAppClient, error) {
	if !config.Configured() {
		return nil, &ConfigError{Provider: "whatsapp", Reason: "access token and phone number id are required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultWhatsAppBaseURL
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultWhatsAppAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &WhatsAppClient{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    NewRateLimiter(config.RequestsPerSecond, 1),
		circuitBreaker: circuitbreaker.New(circuitbreaker.WhatsAppAPIConfig()),
	}, nil
}

// Name returns the provider name.
func (c *WhatsAppClient) Name() string { return "whatsapp-cloud" }

// Health returns the circuit breaker state.
func (c *WhatsAppClient) Health() circuitbreaker.Snapshot { return c.circuitBreaker.Snapshot() }

// WhatsAppTextMessage is the Business API text message payload.
type WhatsAppTextMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             WhatsAppText `json:"text"`
}

// WhatsAppText is the text body of a message.
type WhatsAppText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends body to an E.164 number and returns the message id.
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) (string, error) {
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	return circuitbreaker.Call(c.circuitBreaker, func() (string, error) {
		payload := WhatsAppTextMessage{
			MessagingProduct: "whatsapp",
			To:               strings.TrimPrefix(to, "+"),
			Type:             "text",
			Text:             WhatsAppText{Body: body},
		}
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal whatsapp payload: %w", err)
		}

		endpoint := fmt.Sprintf("%s/%s/%s/messages",
			strings.TrimRight(c.config.BaseURL, "/"), c.config.APIVersion, c.config.PhoneNumberID)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("create http request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("execute http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, _ := io.ReadAll(resp.Body)
		if err := classifyResponse("whatsapp", resp, raw); err != nil {
			return "", err
		}

		var parsed whatsAppResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("decode whatsapp response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("whatsapp error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
			return "", fmt.Errorf("whatsapp response missing message id")
		}
		return parsed.Messages[0].ID, nil
	})
}
