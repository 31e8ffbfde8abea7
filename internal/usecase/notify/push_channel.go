package notify

import (
	"context"
	"fmt"
	"strings"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
)

// pushSender is the bulk push gateway used by PushChannel.
type pushSender interface {
	Name() string
	SendBatch(ctx context.Context, messages []notifier.PushMessage) ([]notifier.PushTicket, error)
}

// PushChannel sends device notifications in bulk chunks.
type PushChannel struct {
	sender pushSender
	batch  BatchConfig
}

// NewPushChannel creates a push channel. batch.Size is capped at notifier.MaxPushBatch.
func NewPushChannel(sender pushSender, batch BatchConfig) *PushChannel {
	if batch.Size <= 0 || batch.Size > notifier.MaxPushBatch {
		batch.Size = notifier.MaxPushBatch
	}
	batch.OnBatch = batchRecorder(entity.ChannelPush, batch.OnBatch)
	return &PushChannel{sender: sender, batch: batch}
}

func (c *PushChannel) Kind() entity.Channel { return entity.ChannelPush }

// Check excludes recipients without a token and skips malformed tokens and
// recipients who disabled notifications.
func (c *PushChannel) Check(r entity.Recipient) error {
	if strings.TrimSpace(r.PushToken) == "" {
		return ErrNoContact
	}
	if !r.NotificationsEnabled {
		return ErrOptedOut
	}
	if !notifier.IsValidPushToken(r.PushToken) {
		return &entity.ValidationError{Field: "push_token", Message: "malformed push token"}
	}
	return nil
}

func (c *PushChannel) SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	provider := c.sender.Name()

	return RunChunked(ctx, recipients, c.batch,
		func(ctx context.Context, chunk []entity.Recipient) []entity.DeliveryResult {
			messages := make([]notifier.PushMessage, len(chunk))
			for i, r := range chunk {
				messages[i] = pushMessage(r.PushToken, n)
			}

			tickets, err := c.sender.SendBatch(ctx, messages)
			results := make([]entity.DeliveryResult, len(chunk))
			for i, r := range chunk {
				switch {
				case err != nil:
					results[i] = entity.Failed(entity.ChannelPush, r.ID, provider, failureDetail(err))
				case i >= len(tickets):
					results[i] = entity.Failed(entity.ChannelPush, r.ID, provider, "missing push ticket")
				default:
					results[i] = ticketResult(r.ID, provider, tickets[i])
				}
			}
			return results
		},
		func(r entity.Recipient, err error) entity.DeliveryResult {
			return entity.Failed(entity.ChannelPush, r.ID, provider, failureDetail(err))
		})
}

// ticketResult maps one push ticket to a delivery result.
func ticketResult(recipientID int64, provider string, t notifier.PushTicket) entity.DeliveryResult {
	if t.Status == notifier.PushTicketOK {
		return entity.Sent(entity.ChannelPush, recipientID, provider, t.ID)
	}

	detail := t.Message
	if detail == "" {
		detail = "push ticket status " + t.Status
	}
	if code, ok := t.Details["error"]; ok {
		detail = fmt.Sprintf("%s (%v)", detail, code)
	}
	return entity.Failed(entity.ChannelPush, recipientID, provider, detail)
}

func (c *PushChannel) Health() []ProviderHealth {
	return []ProviderHealth{providerHealth(c.sender.Name(), true, c.sender)}
}
