package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolnotify/internal/resilience/circuitbreaker"
)

// MaxSMSLength is the single-segment SMS length.
const MaxSMSLength = 160

// SMSSender sends one text message to one E.164 number and returns the provider message id.
type SMSSender interface {
	Name() string
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig contains credentials for the telephony REST provider.
type TwilioConfig struct {
	AccountSID string        `yaml:"account_sid"`
	AuthToken  string        `yaml:"auth_token"`
	FromNumber string        `yaml:"from_number"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Configured reports whether all credentials are present.
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// TwilioClient sends SMS through the Twilio Messages API.
type TwilioClient struct {
	config         TwilioConfig
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewTwilioClient validates the credentials and creates a client.
func NewTwilioClient(config TwilioConfig) (*TwilioClient, error) {
	if !config.Configured() {
		return nil, &ConfigError{Provider: "twilio", Reason: "account sid, auth token and from number are required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultTwilioBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &TwilioClient{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.SMSProviderConfig("twilio")),
	}, nil
}

// Name returns the provider name.
func (c *TwilioClient) Name() string { return "twilio" }

// Health returns the circuit breaker state.
func (c *TwilioClient) Health() circuitbreaker.Snapshot { return c.circuitBreaker.Snapshot() }

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	To      string `json:"to"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS posts a form-encoded message with basic auth and returns the message SID.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	return circuitbreaker.Call(c.circuitBreaker, func() (string, error) {
		form := url.Values{}
		form.Set("From", c.config.FromNumber)
		form.Set("To", to)
		form.Set("Body", body)

		endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
			strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(c.config.AccountSID))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("create http request: %w", err)
		}
		req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("execute http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, _ := io.ReadAll(resp.Body)
		if err := classifyResponse("twilio", resp, raw); err != nil {
			return "", err
		}

		var parsed twilioResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("decode twilio response: %w", err)
		}
		if parsed.SID == "" {
			return "", fmt.Errorf("twilio response missing sid (status %q)", parsed.Status)
		}
		return parsed.SID, nil
	})
}

// SMSGatewayConfig contains credentials for a generic bearer-token SMS gateway.
type SMSGatewayConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	From    string        `yaml:"from"`
	Timeout time.Duration `yaml:"timeout"`
}

// Configured reports whether the gateway URL and key are present.
func (c SMSGatewayConfig) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

// SMSGatewayClient sends SMS through a JSON gateway.
type SMSGatewayClient struct {
	config         SMSGatewayConfig
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewSMSGatewayClient validates the configuration and creates a client.
func NewSMSGatewayClient(config SMSGatewayConfig) (*SMSGatewayClient, error) {
	if !config.Configured() {
		return nil, &ConfigError{Provider: "sms-gateway", Reason: "url and api key are required"}
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SMSGatewayClient{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.SMSProviderConfig("gateway")),
	}, nil
}

// Name returns the provider name.
func (c *SMSGatewayClient) Name() string { return "sms-gateway" }

// Health returns the circuit breaker state.
func (c *SMSGatewayClient) Health() circuitbreaker.Snapshot { return c.circuitBreaker.Snapshot() }

type gatewayRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SendSMS posts a JSON message with a bearer token and returns the gateway id.
func (c *SMSGatewayClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	return circuitbreaker.Call(c.circuitBreaker, func() (string, error) {
		jsonData, err := json.Marshal(gatewayRequest{To: to, Message: body, From: c.config.From})
		if err != nil {
			return "", fmt.Errorf("marshal gateway payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("create http request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("execute http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, _ := io.ReadAll(resp.Body)
		if err := classifyResponse("sms-gateway", resp, raw); err != nil {
			return "", err
		}

		var parsed gatewayResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("decode gateway response: %w", err)
		}
		if parsed.ID == "" {
			return "", fmt.Errorf("sms gateway response missing id (status %q)", parsed.Status)
		}
		return parsed.ID, nil
	})
}

// MockSMSSender always succeeds without contacting any provider.
// It terminates the SMS fallback chain.
type MockSMSSender struct{}

// NewMockSMSSender creates a MockSMSSender.
func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{}
}

// Name returns the provider name.
func (m *MockSMSSender) Name() string { return "mock" }

// SendSMS logs the message and returns a synthetic id.
func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	id := "mock-" + uuid.New().String()
	slog.Info("mock sms sent",
		slog.String("to", maskPhone(to)),
		slog.Int("length", len([]rune(body))),
		slog.String("message_id", id))
	return id, nil
}

// maskPhone keeps the last three digits of a phone number for logs.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
