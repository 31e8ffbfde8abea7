package notify

import (
	"context"
	"strconv"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/repository"
	"schoolnotify/internal/resilience/retry"
)

// inAppProvider names the in-app record store in delivery results.
const inAppProvider = "postgres"

// InAppChannel stores one notification record per recipient.
type InAppChannel struct {
	repo  repository.DeliveryRepository
	batch BatchConfig
	retry retry.Config
}

// NewInAppChannel creates an in-app channel writing through repo.
func NewInAppChannel(repo repository.DeliveryRepository, batch BatchConfig) *InAppChannel {
	batch.OnBatch = batchRecorder(entity.ChannelInApp, batch.OnBatch)
	return &InAppChannel{repo: repo, batch: batch, retry: retry.DBConfig()}
}

func (c *InAppChannel) Kind() entity.Channel { return entity.ChannelInApp }

// Check excludes recipients without a storable id.
func (c *InAppChannel) Check(r entity.Recipient) error {
	if !r.HasValidID() {
		return ErrNoContact
	}
	return nil
}

func (c *InAppChannel) SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	return RunBatched(ctx, recipients, c.batch,
		func(ctx context.Context, r entity.Recipient) entity.DeliveryResult {
			record := entity.NewDeliveryRecord(r.ID, n)
			var id int64
			err := retry.WithBackoff(ctx, c.retry, func() error {
				var err error
				id, err = c.repo.RecordInApp(ctx, record)
				return err
			})
			if err != nil {
				return entity.Failed(entity.ChannelInApp, r.ID, inAppProvider, failureDetail(err))
			}
			return entity.Sent(entity.ChannelInApp, r.ID, inAppProvider, strconv.FormatInt(id, 10))
		},
		func(r entity.Recipient, err error) entity.DeliveryResult {
			return entity.Failed(entity.ChannelInApp, r.ID, inAppProvider, failureDetail(err))
		})
}

func (c *InAppChannel) Health() []ProviderHealth {
	return []ProviderHealth{{Provider: inAppProvider, Configured: c.repo != nil}}
}

// batchRecorder wraps next so every batch is also counted in metrics.
func batchRecorder(ch entity.Channel, next func(index, size int)) func(index, size int) {
	return func(index, size int) {
		RecordBatch(ch)
		if next != nil {
			next(index, size)
		}
	}
}
