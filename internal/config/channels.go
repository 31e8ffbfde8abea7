package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
	envconfig "schoolnotify/pkg/config"
)

// UnconfiguredPolicy decides what an unconfigured email or WhatsApp channel reports.
type UnconfiguredPolicy string

const (
	// PolicyLegacy degrades email to the mock transport and reports WhatsApp
	// as SKIPPED "whatsapp not configured".
	PolicyLegacy UnconfiguredPolicy = "legacy"

	// PolicyUnavailable reports SKIPPED "channel unavailable" for both.
	PolicyUnavailable UnconfiguredPolicy = "unavailable"
)

// IsValid reports whether p is a known policy.
func (p UnconfiguredPolicy) IsValid() bool {
	return p == PolicyLegacy || p == PolicyUnavailable
}

// Email provider selections.
const (
	EmailProviderAuto     = "auto"
	EmailProviderSMTP     = "smtp"
	EmailProviderPostmark = "postmark"
	EmailProviderMock     = "mock"
)

// BatchSettings bounds how a channel submits work to its provider.
type BatchSettings struct {
	Size        int           `yaml:"size"`
	Concurrency int           `yaml:"concurrency"`
	Delay       time.Duration `yaml:"delay"`
}

// InAppConfig configures the in-app channel.
type InAppConfig struct {
	Batch BatchSettings `yaml:"batch"`
}

// PushChannelConfig configures the push channel.
type PushChannelConfig struct {
	Client notifier.PushConfig `yaml:"client"`
	Batch  BatchSettings       `yaml:"batch"`
}

// EmailChannelConfig configures the email channel.
type EmailChannelConfig struct {
	From    string `yaml:"from"`
	ReplyTo string `yaml:"reply_to"`

	// Provider is auto, smtp, postmark or mock. Auto prefers Postmark when a
	// server token is set, then SMTP, then the mock transport.
	Provider string `yaml:"provider"`

	SMTP     notifier.SMTPConfig     `yaml:"smtp"`
	Postmark notifier.PostmarkConfig `yaml:"postmark"`
	Batch    BatchSettings           `yaml:"batch"`
}

// SMSChannelConfig configures the SMS channel and its fallback chain.
type SMSChannelConfig struct {
	Twilio  notifier.TwilioConfig     `yaml:"twilio"`
	Gateway notifier.SMSGatewayConfig `yaml:"gateway"`
	Batch   BatchSettings             `yaml:"batch"`
}

// WhatsAppChannelConfig configures the WhatsApp channel.
type WhatsAppChannelConfig struct {
	Client notifier.WhatsAppConfig `yaml:"client"`
	Batch  BatchSettings           `yaml:"batch"`
}

// ChannelsConfig holds provider credentials and batching knobs for every channel.
type ChannelsConfig struct {
	UnconfiguredPolicy UnconfiguredPolicy `yaml:"unconfigured_policy"`

	// DefaultCountryCode replaces a leading trunk 0 in phone numbers (digits only, e.g. "44").
	DefaultCountryCode string `yaml:"default_country_code"`

	// DispatchTimeout bounds one dispatch call. Zero means no limit.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	// SettleGrace is how long a timed-out dispatch waits for channels to
	// return what they already sent. Zero uses the dispatcher default.
	SettleGrace time.Duration `yaml:"settle_grace"`

	InApp    InAppConfig           `yaml:"inapp"`
	Push     PushChannelConfig     `yaml:"push"`
	Email    EmailChannelConfig    `yaml:"email"`
	SMS      SMSChannelConfig      `yaml:"sms"`
	WhatsApp WhatsAppChannelConfig `yaml:"whatsapp"`
}

// DefaultChannelsConfig returns the built-in defaults. No provider is configured.
func DefaultChannelsConfig() *ChannelsConfig {
	return &ChannelsConfig{
		UnconfiguredPolicy: PolicyLegacy,
		InApp: InAppConfig{
			Batch: BatchSettings{Size: 20, Concurrency: 5},
		},
		Push: PushChannelConfig{
			Client: notifier.PushConfig{
				Endpoint: notifier.DefaultPushEndpoint,
				Timeout:  30 * time.Second,
			},
			Batch: BatchSettings{Size: notifier.MaxPushBatch, Concurrency: 5},
		},
		Email: EmailChannelConfig{
			From:     "notifications@schoolnotify.local",
			Provider: EmailProviderAuto,
			SMTP:     notifier.SMTPConfig{Port: 587},
			Batch:    BatchSettings{Size: 10, Concurrency: 5},
		},
		SMS: SMSChannelConfig{
			Twilio:  notifier.TwilioConfig{Timeout: 15 * time.Second},
			Gateway: notifier.SMSGatewayConfig{Timeout: 15 * time.Second},
			Batch:   BatchSettings{Size: 5, Concurrency: 5, Delay: time.Second},
		},
		WhatsApp: WhatsAppChannelConfig{
			Client: notifier.WhatsAppConfig{
				APIVersion: "v18.0",
				Timeout:    15 * time.Second,
			},
			Batch: BatchSettings{Size: 1, Concurrency: 1, Delay: time.Second},
		},
	}
}

// LoadChannelsConfig builds the channel configuration from defaults, the
// optional YAML file named by NOTIFY_CONFIG_FILE and environment overrides,
// in that order, and validates the result.
func LoadChannelsConfig() (*ChannelsConfig, error) {
	cfg := DefaultChannelsConfig()

	if path := os.Getenv("NOTIFY_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid channels configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
// The path is expected to come from a trusted source (environment or CLI flag).
func (c *ChannelsConfig) LoadFile(path string) error {
	// #nosec G304 -- path is provided by the operator, not request input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides c with any provider environment variables that are set.
func (c *ChannelsConfig) ApplyEnv() {
	c.UnconfiguredPolicy = UnconfiguredPolicy(strings.ToLower(envconfig.GetEnvString("NOTIFY_UNCONFIGURED_POLICY", string(c.UnconfiguredPolicy))))
	c.DefaultCountryCode = envconfig.GetEnvString("NOTIFY_DEFAULT_COUNTRY_CODE", c.DefaultCountryCode)
	c.DispatchTimeout = envconfig.GetEnvDuration("NOTIFY_DISPATCH_TIMEOUT", c.DispatchTimeout)
	c.SettleGrace = envconfig.GetEnvDuration("NOTIFY_SETTLE_GRACE", c.SettleGrace)

	c.Push.Client.Endpoint = envconfig.GetEnvString("PUSH_ENDPOINT", c.Push.Client.Endpoint)
	c.Push.Client.AccessToken = envconfig.GetEnvString("EXPO_ACCESS_TOKEN", c.Push.Client.AccessToken)
	c.Push.Client.RequestsPerSecond = envconfig.GetEnvFloat("PUSH_REQUESTS_PER_SECOND", c.Push.Client.RequestsPerSecond)

	c.Email.From = envconfig.GetEnvString("EMAIL_FROM", c.Email.From)
	c.Email.ReplyTo = envconfig.GetEnvString("EMAIL_REPLY_TO", c.Email.ReplyTo)
	c.Email.Provider = strings.ToLower(envconfig.GetEnvString("EMAIL_PROVIDER", c.Email.Provider))
	c.Email.SMTP.Host = envconfig.GetEnvString("SMTP_HOST", c.Email.SMTP.Host)
	c.Email.SMTP.Port = envconfig.GetEnvInt("SMTP_PORT", c.Email.SMTP.Port)
	c.Email.SMTP.Username = envconfig.GetEnvString("SMTP_USERNAME", c.Email.SMTP.Username)
	c.Email.SMTP.Password = envconfig.GetEnvString("SMTP_PASSWORD", c.Email.SMTP.Password)
	c.Email.Postmark.ServerToken = envconfig.GetEnvString("POSTMARK_SERVER_TOKEN", c.Email.Postmark.ServerToken)
	c.Email.Postmark.AccountToken = envconfig.GetEnvString("POSTMARK_ACCOUNT_TOKEN", c.Email.Postmark.AccountToken)
	c.Email.Postmark.TrackOpens = envconfig.GetEnvBool("POSTMARK_TRACK_OPENS", c.Email.Postmark.TrackOpens)

	c.SMS.Twilio.AccountSID = envconfig.GetEnvString("TWILIO_ACCOUNT_SID", c.SMS.Twilio.AccountSID)
	c.SMS.Twilio.AuthToken = envconfig.GetEnvString("TWILIO_AUTH_TOKEN", c.SMS.Twilio.AuthToken)
	c.SMS.Twilio.FromNumber = envconfig.GetEnvString("TWILIO_PHONE_NUMBER", c.SMS.Twilio.FromNumber)
	c.SMS.Gateway.URL = envconfig.GetEnvString("SMS_GATEWAY_URL", c.SMS.Gateway.URL)
	c.SMS.Gateway.APIKey = envconfig.GetEnvString("SMS_GATEWAY_API_KEY", c.SMS.Gateway.APIKey)
	c.SMS.Gateway.From = envconfig.GetEnvString("SMS_GATEWAY_FROM", c.SMS.Gateway.From)
	c.SMS.Batch.Size = envconfig.GetEnvInt("SMS_BATCH_SIZE", c.SMS.Batch.Size)
	c.SMS.Batch.Delay = envconfig.GetEnvDuration("SMS_BATCH_DELAY", c.SMS.Batch.Delay)

	c.WhatsApp.Client.AccessToken = envconfig.GetEnvString("WHATSAPP_ACCESS_TOKEN", c.WhatsApp.Client.AccessToken)
	c.WhatsApp.Client.PhoneNumberID = envconfig.GetEnvString("WHATSAPP_PHONE_NUMBER_ID", c.WhatsApp.Client.PhoneNumberID)
	c.WhatsApp.Client.APIVersion = envconfig.GetEnvString("WHATSAPP_API_VERSION", c.WhatsApp.Client.APIVersion)
	c.WhatsApp.Client.VerifyToken = envconfig.GetEnvString("WHATSAPP_VERIFY_TOKEN", c.WhatsApp.Client.VerifyToken)
	c.WhatsApp.Client.AppSecret = envconfig.GetEnvString("WHATSAPP_APP_SECRET", c.WhatsApp.Client.AppSecret)
	c.WhatsApp.Batch.Delay = envconfig.GetEnvDuration("WHATSAPP_MESSAGE_DELAY", c.WhatsApp.Batch.Delay)
}

// Validate checks configuration correctness. All problems are reported together.
func (c *ChannelsConfig) Validate() error {
	var errs []error

	if !c.UnconfiguredPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("NOTIFY_UNCONFIGURED_POLICY must be %q or %q, got %q",
			PolicyLegacy, PolicyUnavailable, c.UnconfiguredPolicy))
	}
	if c.DefaultCountryCode != "" && !isDigits(c.DefaultCountryCode) {
		errs = append(errs, errors.New("NOTIFY_DEFAULT_COUNTRY_CODE must contain digits only"))
	}
	if c.DispatchTimeout < 0 {
		errs = append(errs, errors.New("NOTIFY_DISPATCH_TIMEOUT must not be negative"))
	}
	if c.SettleGrace < 0 {
		errs = append(errs, errors.New("NOTIFY_SETTLE_GRACE must not be negative"))
	}

	switch c.Email.Provider {
	case EmailProviderAuto, EmailProviderSMTP, EmailProviderPostmark, EmailProviderMock:
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER must be auto, smtp, postmark or mock, got %q", c.Email.Provider))
	}
	if c.Email.From != "" {
		if err := entity.ValidateEmail(c.Email.From); err != nil {
			errs = append(errs, fmt.Errorf("EMAIL_FROM: %w", err))
		}
	}
	if c.Push.Client.Endpoint != "" {
		if err := entity.ValidateEndpointURL(c.Push.Client.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("PUSH_ENDPOINT: %w", err))
		}
	}
	if c.SMS.Gateway.URL != "" {
		if err := entity.ValidateEndpointURL(c.SMS.Gateway.URL); err != nil {
			errs = append(errs, fmt.Errorf("SMS_GATEWAY_URL: %w", err))
		}
	}

	errs = append(errs, c.InApp.Batch.validate("inapp", 0))
	errs = append(errs, c.Push.Batch.validate("push", notifier.MaxPushBatch))
	errs = append(errs, c.Email.Batch.validate("email", 0))
	errs = append(errs, c.SMS.Batch.validate("sms", 0))
	errs = append(errs, c.WhatsApp.Batch.validate("whatsapp", 0))

	return errors.Join(errs...)
}

// validate checks one channel's batch settings. maxSize of 0 means unbounded.
func (b BatchSettings) validate(channel string, maxSize int) error {
	if b.Size < 1 {
		return fmt.Errorf("%s batch size must be positive", channel)
	}
	if maxSize > 0 && b.Size > maxSize {
		return fmt.Errorf("%s batch size must be at most %d", channel, maxSize)
	}
	if b.Concurrency < 1 {
		return fmt.Errorf("%s batch concurrency must be positive", channel)
	}
	if err := envconfig.ValidateNonNegativeDuration(b.Delay); err != nil {
		return fmt.Errorf("%s batch delay: %w", channel, err)
	}
	return nil
}

// EmailTransportName resolves the auto provider to the transport that will be built.
func (c *ChannelsConfig) EmailTransportName() string {
	if c.Email.Provider != EmailProviderAuto {
		return c.Email.Provider
	}
	switch {
	case c.Email.Postmark.Configured():
		return EmailProviderPostmark
	case c.Email.SMTP.Configured():
		return EmailProviderSMTP
	default:
		return EmailProviderMock
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
