package notify

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"schoolnotify/internal/config"
	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
)

// EmailOptions configures an EmailChannel.
type EmailOptions struct {
	From    string
	ReplyTo string
	Policy  config.UnconfiguredPolicy
	Batch   BatchConfig
}

// EmailChannel renders one email per dispatch and sends it to each recipient.
type EmailChannel struct {
	opts      EmailOptions
	transport notifier.EmailTransport

	// degraded is set when the configured transport could not be built and
	// the mock transport stands in for it.
	degraded bool
}

// NewEmailChannel builds the transport with build. When build fails the
// channel either degrades to the mock transport (legacy policy) or reports
// every recipient as unavailable.
func NewEmailChannel(opts EmailOptions, build func() (notifier.EmailTransport, error)) *EmailChannel {
	opts.Batch.OnBatch = batchRecorder(entity.ChannelEmail, opts.Batch.OnBatch)
	c := &EmailChannel{opts: opts}

	transport, err := build()
	if err == nil && transport == nil {
		err = &notifier.ConfigError{Provider: "email", Reason: "no transport"}
	}
	if err == nil {
		c.transport = transport
		return c
	}

	if opts.Policy == config.PolicyUnavailable {
		slog.Warn("email transport unavailable, email channel disabled", slog.Any("error", err))
		return c
	}

	slog.Warn("email transport unavailable, falling back to mock transport", slog.Any("error", err))
	c.transport = notifier.NewMockEmailTransport()
	c.degraded = true
	return c
}

func (c *EmailChannel) Kind() entity.Channel { return entity.ChannelEmail }

// Check excludes recipients without an address and skips malformed ones.
func (c *EmailChannel) Check(r entity.Recipient) error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrNoContact
	}
	return entity.ValidateEmail(strings.TrimSpace(r.Email))
}

func (c *EmailChannel) SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	if c.transport == nil {
		return skipAll(entity.ChannelEmail, recipients, ErrChannelUnavailable.Error())
	}

	provider := c.transport.Name()
	rendered, err := renderEmail(n)
	if err != nil {
		return failAll(entity.ChannelEmail, recipients, provider, err.Error())
	}

	return RunBatched(ctx, recipients, c.opts.Batch,
		func(ctx context.Context, r entity.Recipient) entity.DeliveryResult {
			to := (&mail.Address{Name: r.DisplayName, Address: strings.TrimSpace(r.Email)}).String()
			id, err := c.transport.SendEmail(ctx, notifier.EmailMessage{
				From:    c.opts.From,
				To:      to,
				ReplyTo: c.opts.ReplyTo,
				Subject: rendered.Subject,
				Text:    rendered.Text,
				HTML:    rendered.HTML,
				Tag:     rendered.Tag,
			})
			if err != nil {
				return entity.Failed(entity.ChannelEmail, r.ID, provider, failureDetail(err))
			}
			res := entity.Sent(entity.ChannelEmail, r.ID, provider, id)
			res.FallbackUsed = c.degraded
			return res
		},
		func(r entity.Recipient, err error) entity.DeliveryResult {
			return entity.Failed(entity.ChannelEmail, r.ID, provider, failureDetail(err))
		})
}

func (c *EmailChannel) Health() []ProviderHealth {
	if c.transport == nil {
		return []ProviderHealth{{Provider: "email", Configured: false}}
	}
	return []ProviderHealth{providerHealth(c.transport.Name(), !c.degraded, c.transport)}
}

// skipAll reports every recipient as SKIPPED with detail.
func skipAll(ch entity.Channel, recipients []entity.Recipient, detail string) []entity.DeliveryResult {
	out := make([]entity.DeliveryResult, len(recipients))
	for i, r := range recipients {
		out[i] = entity.Skipped(ch, r.ID, detail)
	}
	return out
}

// failAll reports every recipient as FAILED with detail.
func failAll(ch entity.Channel, recipients []entity.Recipient, provider, detail string) []entity.DeliveryResult {
	out := make([]entity.DeliveryResult, len(recipients))
	for i, r := range recipients {
		out[i] = entity.Failed(ch, r.ID, provider, detail)
	}
	return out
}
