package notify

import (
	"context"
	"errors"
)

// Sentinel errors for notify use case operations.
var (
	// ErrNoRecipients is returned by SendNotification and Dispatch when the
	// recipient list is empty. It is the only delivery error surfaced to callers;
	// every other failure is folded into the DeliveryReport.
	ErrNoRecipients = errors.New("no recipients")

	// ErrNoContact is returned by Channel.Check when the recipient has no
	// contact data for the channel. Such recipients are excluded, not skipped.
	ErrNoContact = errors.New("no contact data for channel")

	// ErrOptedOut is returned by Channel.Check when the recipient disabled
	// notifications for the channel.
	ErrOptedOut = errors.New("recipient opted out")

	// ErrChannelNotRegistered is reported for enabled channels that have no adapter.
	ErrChannelNotRegistered = errors.New("channel not registered")

	// ErrChannelUnavailable is reported when an unconfigured channel is
	// switched to the uniform unavailable policy.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrWhatsAppNotConfigured is reported for every WhatsApp recipient when
	// the Business API credentials are missing.
	ErrWhatsAppNotConfigured = errors.New("whatsapp not configured")
)

// Detail strings used for results produced by the dispatcher itself.
const (
	detailTimeout  = "timeout"
	detailCanceled = "canceled"
	detailNoResult = "no result from channel"
)

// contextDetail maps a context error to a short result detail.
func contextDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return detailTimeout
	}
	if errors.Is(err, context.Canceled) {
		return detailCanceled
	}
	return err.Error()
}

// failureDetail maps an error to the text stored in DeliveryResult.ErrorDetail.
func failureDetail(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextDetail(err)
	}
	return err.Error()
}
