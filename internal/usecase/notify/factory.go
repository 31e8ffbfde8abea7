package notify

import (
	"fmt"
	"log/slog"

	"schoolnotify/internal/config"
	"schoolnotify/internal/infra/notifier"
	"schoolnotify/internal/repository"
)

// BuildChannels creates one adapter per channel from cfg. In-app records are
// written to sink. Provider clients that cannot be built are left out: SMS
// falls through to the next provider, email and WhatsApp follow
// cfg.UnconfiguredPolicy.
func BuildChannels(cfg *config.ChannelsConfig, sink repository.DeliveryRepository) []Channel {
	channels := []Channel{
		NewInAppChannel(sink, batchConfig(cfg.InApp.Batch)),
		NewPushChannel(notifier.NewPushClient(cfg.Push.Client), batchConfig(cfg.Push.Batch)),
		NewEmailChannel(EmailOptions{
			From:    cfg.Email.From,
			ReplyTo: cfg.Email.ReplyTo,
			Policy:  cfg.UnconfiguredPolicy,
			Batch:   batchConfig(cfg.Email.Batch),
		}, func() (notifier.EmailTransport, error) {
			return buildEmailTransport(cfg)
		}),
		NewSMSChannel(buildSMSChain(cfg.SMS), batchConfig(cfg.SMS.Batch), cfg.DefaultCountryCode),
	}

	var whatsApp whatsAppSender
	if client, err := notifier.NewWhatsAppClient(cfg.WhatsApp.Client); err == nil {
		whatsApp = client
	} else {
		slog.Info("whatsapp channel not configured", slog.Any("reason", err))
	}
	channels = append(channels, NewWhatsAppChannel(whatsApp, WhatsAppOptions{
		Policy:             cfg.UnconfiguredPolicy,
		DefaultCountryCode: cfg.DefaultCountryCode,
		Batch:              batchConfig(cfg.WhatsApp.Batch),
	}))

	return channels
}

func batchConfig(b config.BatchSettings) BatchConfig {
	return BatchConfig{Size: b.Size, Concurrency: b.Concurrency, Delay: b.Delay}
}

// buildEmailTransport resolves the configured email provider. The auto
// provider with nothing configured is an error so the channel policy applies.
func buildEmailTransport(cfg *config.ChannelsConfig) (notifier.EmailTransport, error) {
	switch name := cfg.EmailTransportName(); name {
	case config.EmailProviderPostmark:
		t, err := notifier.NewPostmarkTransport(cfg.Email.Postmark)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.EmailProviderSMTP:
		t, err := notifier.NewSMTPTransport(cfg.Email.SMTP)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.EmailProviderMock:
		if cfg.Email.Provider == config.EmailProviderAuto {
			return nil, &notifier.ConfigError{Provider: "email", Reason: "no SMTP host or Postmark token configured"}
		}
		return notifier.NewMockEmailTransport(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", name)
	}
}

// buildSMSChain assembles Twilio, then the generic gateway, then the mock.
func buildSMSChain(cfg config.SMSChannelConfig) *FallbackChain {
	var providers []SMSProvider

	if twilio, err := notifier.NewTwilioClient(cfg.Twilio); err == nil {
		providers = append(providers, SMSProvider{Kind: ProviderPrimary, Sender: twilio})
	} else {
		slog.Info("twilio not configured", slog.Any("reason", err))
	}

	if gateway, err := notifier.NewSMSGatewayClient(cfg.Gateway); err == nil {
		providers = append(providers, SMSProvider{Kind: ProviderGeneric, Sender: gateway})
	} else {
		slog.Info("sms gateway not configured", slog.Any("reason", err))
	}

	return NewFallbackChain(providers...)
}
