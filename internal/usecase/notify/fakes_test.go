package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
)

// fakeChannel is a scriptable Channel.
type fakeChannel struct {
	kind  entity.Channel
	check func(entity.Recipient) error
	send  func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult

	mu    sync.Mutex
	calls [][]entity.Recipient
}

func (f *fakeChannel) Kind() entity.Channel { return f.kind }

func (f *fakeChannel) Check(r entity.Recipient) error {
	if f.check == nil {
		return nil
	}
	return f.check(r)
}

func (f *fakeChannel) SendBulk(ctx context.Context, rs []entity.Recipient, n *entity.Notification) []entity.DeliveryResult {
	f.mu.Lock()
	f.calls = append(f.calls, rs)
	f.mu.Unlock()
	if f.send == nil {
		return sentAll(f.kind, rs)
	}
	return f.send(ctx, rs)
}

func (f *fakeChannel) received() []entity.Recipient {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Recipient
	for _, c := range f.calls {
		out = append(out, c...)
	}
	return out
}

func sentAll(ch entity.Channel, rs []entity.Recipient) []entity.DeliveryResult {
	out := make([]entity.DeliveryResult, len(rs))
	for i, r := range rs {
		out[i] = entity.Sent(ch, r.ID, "fake", fmt.Sprintf("%s-%d", ch, r.ID))
	}
	return out
}

// memDeliveryRepo is an in-memory repository.DeliveryRepository.
type memDeliveryRepo struct {
	mu        sync.Mutex
	records   []*entity.DeliveryRecord
	failFor   map[int64]error
	total     int64
	delivered int64
	countErr  error
}

func (m *memDeliveryRepo) RecordInApp(ctx context.Context, rec *entity.DeliveryRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[rec.RecipientID]; err != nil {
		return 0, err
	}
	m.records = append(m.records, rec)
	return int64(len(m.records)), nil
}

func (m *memDeliveryRepo) CountTotal(ctx context.Context, r entity.DateRange) (int64, error) {
	return m.total, m.countErr
}

func (m *memDeliveryRepo) CountDelivered(ctx context.Context, r entity.DateRange) (int64, error) {
	return m.delivered, m.countErr
}

func (m *memDeliveryRepo) MarkRead(ctx context.Context, id int64, at time.Time) error {
	return nil
}

// fakeSMS is a scriptable notifier.SMSSender.
type fakeSMS struct {
	name  string
	err   error
	calls atomic.Int32

	mu   sync.Mutex
	sent []string
}

func (f *fakeSMS) Name() string { return f.name }

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, to+"|"+body)
	f.mu.Unlock()
	return f.name + "-id", nil
}

// fakePush is a scriptable push gateway.
type fakePush struct {
	tickets func(msgs []notifier.PushMessage) ([]notifier.PushTicket, error)

	mu      sync.Mutex
	batches [][]notifier.PushMessage
}

func (f *fakePush) Name() string { return "expo" }

func (f *fakePush) SendBatch(ctx context.Context, msgs []notifier.PushMessage) ([]notifier.PushTicket, error) {
	f.mu.Lock()
	f.batches = append(f.batches, msgs)
	f.mu.Unlock()
	if f.tickets != nil {
		return f.tickets(msgs)
	}
	out := make([]notifier.PushTicket, len(msgs))
	for i := range msgs {
		out[i] = notifier.PushTicket{Status: notifier.PushTicketOK, ID: fmt.Sprintf("ticket-%d", i)}
	}
	return out, nil
}

// fakeEmail is a scriptable notifier.EmailTransport.
type fakeEmail struct {
	err   error
	panic bool

	mu   sync.Mutex
	sent []notifier.EmailMessage
}

func (f *fakeEmail) Name() string { return "fake-email" }

func (f *fakeEmail) SendEmail(ctx context.Context, msg notifier.EmailMessage) (string, error) {
	if f.panic {
		panic("email transport exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return "email-" + msg.To, nil
}

// fakeWhatsApp is a scriptable WhatsApp sender.
type fakeWhatsApp struct {
	err error

	mu sync.Mutex
	to []string
}

func (f *fakeWhatsApp) Name() string { return "whatsapp-cloud" }

func (f *fakeWhatsApp) SendText(ctx context.Context, to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	f.to = append(f.to, to)
	f.mu.Unlock()
	return "wamid." + to, nil
}

var errProvider = errors.New("provider down")
