package http

import (
	"context"
	"sync"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/usecase/notify"
)

// fakeNotifier implements notify.Service for handler tests.
type fakeNotifier struct {
	health   []notify.ChannelHealthStatus
	stats    *entity.DeliveryStats
	statsErr error

	mu       sync.Mutex
	gotFrom  *time.Time
	gotTo    *time.Time
	statsHit int
}

func (f *fakeNotifier) SendNotification(context.Context, []entity.Recipient, string, string, notify.Options) (*entity.DeliveryReport, error) {
	return &entity.DeliveryReport{}, nil
}

func (f *fakeNotifier) Dispatch(context.Context, *entity.Notification, []entity.Recipient) (*entity.DeliveryReport, error) {
	return &entity.DeliveryReport{}, nil
}

func (f *fakeNotifier) GetDeliveryStats(_ context.Context, from, to *time.Time) (*entity.DeliveryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsHit++
	f.gotFrom, f.gotTo = from, to
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeNotifier) GetChannelHealth() []notify.ChannelHealthStatus {
	return f.health
}

// fakeMarker implements ReadMarker.
type fakeMarker struct {
	err   error
	gotID int64
	gotAt time.Time
	calls int
}

func (f *fakeMarker) MarkRead(_ context.Context, id int64, at time.Time) error {
	f.calls++
	f.gotID, f.gotAt = id, at
	return f.err
}

func allHealthy() []notify.ChannelHealthStatus {
	out := make([]notify.ChannelHealthStatus, 0, len(entity.AllChannels))
	for _, ch := range entity.AllChannels {
		out = append(out, notify.ChannelHealthStatus{Channel: ch, Registered: true, Healthy: true})
	}
	return out
}
