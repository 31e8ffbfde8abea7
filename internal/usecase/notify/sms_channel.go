package notify

import (
	"context"
	"strings"

	"schoolnotify/internal/domain/entity"
)

// SMSChannel sends text messages through a provider fallback chain.
type SMSChannel struct {
	chain              *FallbackChain
	batch              BatchConfig
	defaultCountryCode string
}

// NewSMSChannel creates an SMS channel. Phone numbers with a trunk prefix are
// completed with defaultCountryCode.
func NewSMSChannel(chain *FallbackChain, batch BatchConfig, defaultCountryCode string) *SMSChannel {
	if chain == nil {
		chain = NewFallbackChain()
	}
	batch.OnBatch = batchRecorder(entity.ChannelSMS, batch.OnBatch)
	return &SMSChannel{chain: chain, batch: batch, defaultCountryCode: defaultCountryCode}
}

func (c *SMSChannel) Kind() entity.Channel { return entity.ChannelSMS }

// Check excludes recipients without a phone and skips unparsable numbers.
func (c *SMSChannel) Check(r entity.Recipient) error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrNoContact
	}
	_, err := entity.NormalizePhone(r.Phone, c.defaultCountryCode)
	return err
}

func (c *SMSChannel) SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	body := formatSMS(n)

	return RunBatched(ctx, recipients, c.batch,
		func(ctx context.Context, r entity.Recipient) entity.DeliveryResult {
			to, err := entity.NormalizePhone(r.Phone, c.defaultCountryCode)
			if err != nil {
				return entity.Skipped(entity.ChannelSMS, r.ID, err.Error())
			}
			return c.chain.Send(ctx, r.ID, to, body)
		},
		func(r entity.Recipient, err error) entity.DeliveryResult {
			return entity.Failed(entity.ChannelSMS, r.ID, "", failureDetail(err))
		})
}

func (c *SMSChannel) Health() []ProviderHealth {
	providers := c.chain.Providers()
	out := make([]ProviderHealth, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerHealth(p.Sender.Name(), p.Kind != ProviderMock, p.Sender))
	}
	return out
}
