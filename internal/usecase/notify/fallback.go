package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
)

// ProviderKind tags an SMS provider's position in the fallback chain.
type ProviderKind string

const (
	ProviderPrimary ProviderKind = "primary"
	ProviderGeneric ProviderKind = "generic"
	ProviderMock    ProviderKind = "mock"
)

// SMSProvider is one link of the fallback chain.
type SMSProvider struct {
	Kind   ProviderKind
	Sender notifier.SMSSender
}

// FallbackChain tries SMS providers in order until one accepts the message.
// The chain always ends with a mock provider, so it is never empty.
type FallbackChain struct {
	providers []SMSProvider
}

// NewFallbackChain builds a chain from the configured providers.
// Entries with a nil sender are dropped and a mock provider is appended
// unless the last entry already is one.
func NewFallbackChain(providers ...SMSProvider) *FallbackChain {
	chain := make([]SMSProvider, 0, len(providers)+1)
	for _, p := range providers {
		if p.Sender != nil {
			chain = append(chain, p)
		}
	}
	if len(chain) == 0 || chain[len(chain)-1].Kind != ProviderMock {
		chain = append(chain, SMSProvider{Kind: ProviderMock, Sender: notifier.NewMockSMSSender()})
	}
	return &FallbackChain{providers: chain}
}

// Providers returns the chain in order.
func (c *FallbackChain) Providers() []SMSProvider {
	return append([]SMSProvider(nil), c.providers...)
}

// Send delivers body to the E.164 number to on behalf of recipientID.
//
// A provider error is logged and the next provider is tried. The first
// success yields a SENT result; FallbackUsed is set when that provider is not
// the first in the chain or is the mock, and the earlier errors are kept in
// ErrorDetail. When the context ends the chain stops with a FAILED result.
func (c *FallbackChain) Send(ctx context.Context, recipientID int64, to, body string) entity.DeliveryResult {
	var errs []error

	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return entity.Failed(entity.ChannelSMS, recipientID, p.Sender.Name(), joinDetail(contextDetail(err), errs))
		}

		id, err := p.Sender.SendSMS(ctx, to, body)
		if err == nil {
			res := entity.Sent(entity.ChannelSMS, recipientID, p.Sender.Name(), id)
			res.FallbackUsed = i > 0 || p.Kind == ProviderMock
			if len(errs) > 0 {
				res.ErrorDetail = errors.Join(errs...).Error()
			}
			if res.FallbackUsed {
				RecordFallback(p.Sender.Name())
			}
			return res
		}

		slog.Warn("sms provider failed, trying next",
			slog.String("provider", p.Sender.Name()),
			slog.String("kind", string(p.Kind)),
			slog.Int64("recipient_id", recipientID),
			slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Sender.Name(), err))
	}

	last := c.providers[len(c.providers)-1].Sender.Name()
	return entity.Failed(entity.ChannelSMS, recipientID, last, errors.Join(errs...).Error())
}

func joinDetail(head string, errs []error) string {
	if len(errs) == 0 {
		return head
	}
	return head + "; " + errors.Join(errs...).Error()
}
