package notify

import (
	"context"
	"strings"

	"schoolnotify/internal/config"
	"schoolnotify/internal/domain/entity"
)

// whatsAppSender is the Business API client used by WhatsAppChannel.
type whatsAppSender interface {
	Name() string
	SendText(ctx context.Context, to, body string) (string, error)
}

// WhatsAppOptions configures a WhatsAppChannel.
type WhatsAppOptions struct {
	Policy             config.UnconfiguredPolicy
	DefaultCountryCode string

	// Batch is normally one message at a time with a one second gap.
	Batch BatchConfig
}

// WhatsAppChannel sends text messages to opted-in recipients, one at a time.
type WhatsAppChannel struct {
	sender whatsAppSender
	opts   WhatsAppOptions
}

// NewWhatsAppChannel creates a WhatsApp channel. A nil sender means the
// Business API is not configured.
func NewWhatsAppChannel(sender whatsAppSender, opts WhatsAppOptions) *WhatsAppChannel {
	opts.Batch.OnBatch = batchRecorder(entity.ChannelWhatsApp, opts.Batch.OnBatch)
	return &WhatsAppChannel{sender: sender, opts: opts}
}

func (c *WhatsAppChannel) Kind() entity.Channel { return entity.ChannelWhatsApp }

// Check excludes recipients who did not opt in or have no phone and skips
// unparsable numbers.
func (c *WhatsAppChannel) Check(r entity.Recipient) error {
	if !r.WhatsAppOptIn || strings.TrimSpace(r.Phone) == "" {
		return ErrNoContact
	}
	_, err := entity.NormalizePhone(r.Phone, c.opts.DefaultCountryCode)
	return err
}

func (c *WhatsAppChannel) SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	if c.sender == nil {
		detail := ErrWhatsAppNotConfigured.Error()
		if c.opts.Policy == config.PolicyUnavailable {
			detail = ErrChannelUnavailable.Error()
		}
		return skipAll(entity.ChannelWhatsApp, recipients, detail)
	}

	provider := c.sender.Name()
	body := formatWhatsApp(n)

	return RunBatched(ctx, recipients, c.opts.Batch,
		func(ctx context.Context, r entity.Recipient) entity.DeliveryResult {
			to, err := entity.NormalizePhone(r.Phone, c.opts.DefaultCountryCode)
			if err != nil {
				return entity.Skipped(entity.ChannelWhatsApp, r.ID, err.Error())
			}
			id, err := c.sender.SendText(ctx, to, body)
			if err != nil {
				return entity.Failed(entity.ChannelWhatsApp, r.ID, provider, failureDetail(err))
			}
			return entity.Sent(entity.ChannelWhatsApp, r.ID, provider, id)
		},
		func(r entity.Recipient, err error) entity.DeliveryResult {
			return entity.Failed(entity.ChannelWhatsApp, r.ID, provider, failureDetail(err))
		})
}

func (c *WhatsAppChannel) Health() []ProviderHealth {
	if c.sender == nil {
		return []ProviderHealth{{Provider: "whatsapp", Configured: false}}
	}
	return []ProviderHealth{providerHealth(c.sender.Name(), true, c.sender)}
}
