package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolnotify/internal/config"
	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/handler/http/requestid"
	"schoolnotify/internal/infra/notifier"
)

const validToken = "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"

// testRig wires real channel adapters to in-memory providers.
type testRig struct {
	repo     *memDeliveryRepo
	push     *fakePush
	email    *fakeEmail
	sms      *fakeSMS
	whatsApp *fakeWhatsApp
}

func newTestRig() *testRig {
	return &testRig{
		repo:     &memDeliveryRepo{},
		push:     &fakePush{},
		email:    &fakeEmail{},
		sms:      &fakeSMS{name: "twilio"},
		whatsApp: &fakeWhatsApp{},
	}
}

func (r *testRig) channels() []Channel {
	return []Channel{
		NewInAppChannel(r.repo, BatchConfig{Size: 10, Concurrency: 5}),
		NewPushChannel(r.push, BatchConfig{}),
		NewEmailChannel(EmailOptions{From: "office@school.example"},
			func() (notifier.EmailTransport, error) { return r.email, nil }),
		NewSMSChannel(NewFallbackChain(SMSProvider{Kind: ProviderPrimary, Sender: r.sms}),
			BatchConfig{Size: 5, Concurrency: 5}, "1"),
		NewWhatsAppChannel(r.whatsApp, WhatsAppOptions{DefaultCountryCode: "1"}),
	}
}

func (r *testRig) service() Service {
	return NewService(r.channels(), r.repo, ServiceConfig{})
}

func notification(priority entity.Priority, opts entity.ChannelOptions) *entity.Notification {
	return &entity.Notification{
		Title:    "School closed",
		Message:  "The school is closed tomorrow due to snow.",
		Priority: priority,
		Channels: opts,
		SentBy:   "Front office",
	}
}

func countByID(results []entity.DeliveryResult) map[int64]int {
	out := map[int64]int{}
	for _, r := range results {
		out[r.RecipientID]++
	}
	return out
}

// dispatchWith runs a dispatch that is expected to succeed.
func dispatchWith(t *testing.T, svc Service, n *entity.Notification, recipients []entity.Recipient) *entity.DeliveryReport {
	t.Helper()
	report, err := svc.Dispatch(context.Background(), n, recipients)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

// TestDispatch_PushScenario verifies push eligibility with valid, malformed and missing tokens
func TestDispatch_PushScenario(t *testing.T) {
	// Arrange
	rig := newTestRig()
	svc := rig.service()
	recipients := []entity.Recipient{
		{ID: 1, PushToken: validToken, NotificationsEnabled: true},
		{ID: 2, PushToken: "bogus-token", NotificationsEnabled: true},
		{ID: 3, NotificationsEnabled: true},
	}

	// Act
	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{}), recipients)

	// Assert
	assert.Equal(t, 2, report.ChannelsAttempted)

	push := report.Channels[entity.ChannelPush]
	assert.Equal(t, 1, push.Sent)
	assert.Equal(t, 1, push.Skipped)
	assert.Equal(t, 0, push.Failed)

	inApp := report.Channels[entity.ChannelInApp]
	assert.Equal(t, 3, inApp.Sent)

	require.Len(t, rig.push.batches, 1)
	assert.Len(t, rig.push.batches[0], 1, "only the valid token reaches the provider")
	assert.Equal(t, 67, report.DeliveryRate)
}

// TestDispatch_Coverage verifies exactly one result per eligible recipient per enabled channel
func TestDispatch_Coverage(t *testing.T) {
	// Arrange
	rig := newTestRig()
	svc := rig.service()
	recipients := []entity.Recipient{
		{ID: 1, Email: "a@example.com", Phone: "+15550100001", PushToken: validToken, NotificationsEnabled: true, WhatsAppOptIn: true},
		{ID: 2, Email: "b@example.com"},
		{ID: 3, Phone: "555 010 0003", WhatsAppOptIn: true},
		{ID: 4, Email: "not-an-email", Phone: "x-1"},
	}
	n := notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true, SendSMS: true, SendWhatsApp: true})

	// Act
	report := dispatchWith(t, svc, n, recipients)

	// Assert
	assert.Equal(t, 5, report.ChannelsAttempted)

	want := map[entity.Channel]entity.ChannelSummary{
		entity.ChannelInApp:    {Sent: 4},
		entity.ChannelPush:     {Sent: 1},
		entity.ChannelEmail:    {Sent: 2, Skipped: 1},
		entity.ChannelSMS:      {Sent: 2, Skipped: 1},
		entity.ChannelWhatsApp: {Sent: 2},
	}
	for ch, w := range want {
		got := report.Channels[ch]
		assert.Equal(t, w.Sent, got.Sent, "%s sent", ch)
		assert.Equal(t, w.Skipped, got.Skipped, "%s skipped", ch)
		assert.Equal(t, 0, got.Failed, "%s failed", ch)
	}

	assert.Len(t, rig.repo.records, 4)
	assert.Len(t, rig.email.sent, 2)
	assert.ElementsMatch(t, []string{"+15550100001", "+15550100003"}, rig.whatsApp.to)
	assert.Equal(t, 11, report.TotalSent)
	assert.Equal(t, 2, report.TotalSkipped)
}

// TestDispatch_ResultsPerRecipient verifies recipients never receive duplicate results
func TestDispatch_ResultsPerRecipient(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	got := map[entity.Channel][]entity.DeliveryResult{}
	record := func(kind entity.Channel) func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		return func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
			out := sentAll(kind, rs)
			mu.Lock()
			got[kind] = out
			mu.Unlock()
			return out
		}
	}
	inApp := &fakeChannel{kind: entity.ChannelInApp}
	inApp.send = record(entity.ChannelInApp)
	push := &fakeChannel{kind: entity.ChannelPush, check: func(r entity.Recipient) error {
		if r.PushToken == "" {
			return ErrNoContact
		}
		return nil
	}}
	push.send = record(entity.ChannelPush)
	svc := NewService([]Channel{inApp, push}, nil, ServiceConfig{})

	recipients := []entity.Recipient{{ID: 1, PushToken: validToken}, {ID: 2}, {ID: 3, PushToken: validToken}}

	// Act
	_ = dispatchWith(t, svc, notification(entity.PriorityLow, entity.ChannelOptions{}), recipients)

	// Assert
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, countByID(got[entity.ChannelInApp]))
	assert.Equal(t, map[int64]int{1: 1, 3: 1}, countByID(got[entity.ChannelPush]))
	assert.Equal(t, []entity.Recipient{recipients[0], recipients[2]}, push.received())
}

// TestDispatch_EmailFailureIsIsolated verifies a failing email adapter leaves other channels unchanged
func TestDispatch_EmailFailureIsIsolated(t *testing.T) {
	recipients := []entity.Recipient{
		{ID: 1, Email: "a@example.com", Phone: "+15550100001", PushToken: validToken, NotificationsEnabled: true, WhatsAppOptIn: true},
		{ID: 2, Email: "b@example.com", Phone: "+15550100002", WhatsAppOptIn: true},
	}
	n := notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true, SendSMS: true, SendWhatsApp: true})

	baseline := dispatchWith(t, newTestRig().service(), n, recipients)

	tests := []struct {
		name  string
		email Channel
	}{
		{
			name: "provider errors",
			email: NewEmailChannel(EmailOptions{}, func() (notifier.EmailTransport, error) {
				return &fakeEmail{err: errors.New("smtp: connection reset")}, nil
			}),
		},
		{
			name: "transport panics",
			email: NewEmailChannel(EmailOptions{}, func() (notifier.EmailTransport, error) {
				return &fakeEmail{panic: true}, nil
			}),
		},
		{
			name: "adapter panics",
			email: &fakeChannel{kind: entity.ChannelEmail, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
				panic("adapter exploded")
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			rig := newTestRig()
			channels := append([]Channel{tt.email}, rig.channels()...)
			svc := NewService(channels, nil, ServiceConfig{})

			// Act
			report := dispatchWith(t, svc, n, recipients)

			// Assert
			email := report.Channels[entity.ChannelEmail]
			assert.Equal(t, 0, email.Sent)
			assert.Equal(t, 2, email.Failed)
			assert.Len(t, email.Errors, 2)

			for _, ch := range []entity.Channel{entity.ChannelInApp, entity.ChannelPush, entity.ChannelSMS, entity.ChannelWhatsApp} {
				assert.Equal(t, baseline.Channels[ch], report.Channels[ch], "%s changed", ch)
			}
		})
	}
}

// TestDispatch_AdapterPanicDetail verifies a panicking adapter yields FAILED panic results
func TestDispatch_AdapterPanicDetail(t *testing.T) {
	email := &fakeChannel{kind: entity.ChannelEmail, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		panic("boom")
	}}
	svc := NewService([]Channel{&fakeChannel{kind: entity.ChannelInApp}, &fakeChannel{kind: entity.ChannelPush}, email}, nil, ServiceConfig{})

	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true}),
		[]entity.Recipient{{ID: 7, Email: "a@example.com"}})

	require.Len(t, report.Channels[entity.ChannelEmail].Errors, 1)
	assert.Equal(t, entity.DeliveryError{RecipientID: 7, Message: "panic: boom"}, report.Channels[entity.ChannelEmail].Errors[0])
	assert.Equal(t, 1, report.Channels[entity.ChannelInApp].Sent)
}

// TestDispatch_HighPriorityForcesSMS verifies HIGH priority attempts SMS without the flag
func TestDispatch_HighPriorityForcesSMS(t *testing.T) {
	// Arrange
	rig := newTestRig()
	svc := rig.service()
	recipients := []entity.Recipient{{ID: 1, Phone: "+15550100001"}}

	// Act
	report := dispatchWith(t, svc, notification(entity.PriorityHigh, entity.ChannelOptions{SendSMS: false}), recipients)

	// Assert
	require.Contains(t, report.Channels, entity.ChannelSMS)
	assert.Equal(t, 1, report.Channels[entity.ChannelSMS].Sent)
	require.Len(t, rig.sms.sent, 1)
	assert.Contains(t, rig.sms.sent[0], "URGENT: School closed")
}

// TestDispatch_NoSMSProviderFallsBackToMock verifies the mock provider delivers when nothing is configured
func TestDispatch_NoSMSProviderFallsBackToMock(t *testing.T) {
	// Arrange
	svc := NewService([]Channel{
		&fakeChannel{kind: entity.ChannelInApp},
		&fakeChannel{kind: entity.ChannelPush, check: func(entity.Recipient) error { return ErrNoContact }},
		NewSMSChannel(NewFallbackChain(), BatchConfig{}, ""),
	}, nil, ServiceConfig{})

	// Act
	report, err := svc.SendNotification(context.Background(),
		[]entity.Recipient{{ID: 1, Phone: "+15550100001"}},
		"Reminder", "Parent evening at 6pm", Options{SendSMS: true, SendEmail: ptr(false)})

	// Assert
	require.NoError(t, err)
	sms := report.Channels[entity.ChannelSMS]
	assert.Equal(t, 1, sms.Sent)
	assert.Equal(t, 0, sms.Failed)
}

// TestEnabledChannels verifies the channel enable rules
func TestEnabledChannels(t *testing.T) {
	tests := []struct {
		name     string
		priority entity.Priority
		opts     entity.ChannelOptions
		want     []entity.Channel
	}{
		{
			name:     "nothing requested",
			priority: entity.PriorityNormal,
			want:     []entity.Channel{entity.ChannelInApp, entity.ChannelPush},
		},
		{
			name:     "email only",
			priority: entity.PriorityNormal,
			opts:     entity.ChannelOptions{SendEmail: true},
			want:     []entity.Channel{entity.ChannelInApp, entity.ChannelPush, entity.ChannelEmail},
		},
		{
			name:     "high forces sms",
			priority: entity.PriorityHigh,
			want:     []entity.Channel{entity.ChannelInApp, entity.ChannelPush, entity.ChannelSMS},
		},
		{
			name:     "low with sms flag",
			priority: entity.PriorityLow,
			opts:     entity.ChannelOptions{SendSMS: true},
			want:     []entity.Channel{entity.ChannelInApp, entity.ChannelPush, entity.ChannelSMS},
		},
		{
			name:     "everything",
			priority: entity.PriorityHigh,
			opts:     entity.ChannelOptions{SendEmail: true, SendSMS: true, SendWhatsApp: true},
			want:     entity.AllChannels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enabledChannels(notification(tt.priority, tt.opts))
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestSendNotification_Defaults verifies email defaults to on and WhatsApp to off
func TestSendNotification_Defaults(t *testing.T) {
	rig := newTestRig()
	svc := rig.service()
	recipients := []entity.Recipient{{ID: 1, Email: "a@example.com", Phone: "+15550100001", WhatsAppOptIn: true}}

	report, err := svc.SendNotification(context.Background(), recipients, "Hello", "World", Options{})
	require.NoError(t, err)

	assert.Contains(t, report.Channels, entity.ChannelEmail)
	assert.NotContains(t, report.Channels, entity.ChannelSMS)
	assert.NotContains(t, report.Channels, entity.ChannelWhatsApp)
	assert.Equal(t, entity.TypeCustom, rig.repo.records[0].Type)
	assert.Equal(t, entity.PriorityNormal, rig.repo.records[0].Priority)

	report, err = svc.SendNotification(context.Background(), recipients, "Hello", "World", Options{SendEmail: ptr(false)})
	require.NoError(t, err)
	assert.NotContains(t, report.Channels, entity.ChannelEmail)
}

// TestSendNotification_PassesOptionsThrough verifies options reach the stored record
func TestSendNotification_PassesOptionsThrough(t *testing.T) {
	rig := newTestRig()
	svc := rig.service()
	corr := int64(1234)

	_, err := svc.SendNotification(context.Background(), []entity.Recipient{{ID: 8}}, " Absent ", "Marked absent today",
		Options{Priority: "low", Type: "absence", CorrelationID: &corr, SentBy: "Attendance"})
	require.NoError(t, err)

	require.Len(t, rig.repo.records, 1)
	rec := rig.repo.records[0]
	assert.Equal(t, "Absent", rec.Title)
	assert.Equal(t, entity.PriorityLow, rec.Priority)
	assert.Equal(t, entity.TypeAbsence, rec.Type)
	assert.Equal(t, &corr, rec.CorrelationID)
	assert.Equal(t, "Attendance", rec.SentBy)
}

// TestDispatch_NoRecipients verifies the only error surfaced for delivery problems
func TestDispatch_NoRecipients(t *testing.T) {
	svc := newTestRig().service()

	report, err := svc.Dispatch(context.Background(), notification(entity.PriorityHigh, entity.ChannelOptions{}), nil)

	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Nil(t, report)

	_, err = svc.SendNotification(context.Background(), []entity.Recipient{}, "t", "m", Options{})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

// TestDispatch_InvalidNotification verifies malformed requests are rejected before any send
func TestDispatch_InvalidNotification(t *testing.T) {
	tests := []struct {
		name string
		n    *entity.Notification
	}{
		{"nil", nil},
		{"empty title", &entity.Notification{Title: "  ", Message: "m"}},
		{"empty message", &entity.Notification{Title: "t"}},
		{"unknown priority", &entity.Notification{Title: "t", Message: "m", Priority: "urgent"}},
		{"unknown type", &entity.Notification{Title: "t", Message: "m", Type: "memo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inApp := &fakeChannel{kind: entity.ChannelInApp}
			svc := NewService([]Channel{inApp}, nil, ServiceConfig{})

			report, err := svc.Dispatch(context.Background(), tt.n, []entity.Recipient{{ID: 1}})

			assert.ErrorIs(t, err, entity.ErrInvalidInput)
			assert.Nil(t, report)
			assert.Empty(t, inApp.received())
		})
	}
}

// TestDispatch_DoesNotMutateInput verifies the caller's notification is left untouched
func TestDispatch_DoesNotMutateInput(t *testing.T) {
	svc := NewService([]Channel{&fakeChannel{kind: entity.ChannelInApp}}, nil, ServiceConfig{})
	n := &entity.Notification{Title: " t ", Message: "m"}

	_, err := svc.Dispatch(context.Background(), n, []entity.Recipient{{ID: 1}})

	require.NoError(t, err)
	assert.Equal(t, " t ", n.Title)
	assert.Empty(t, n.Priority)
}

// TestDispatch_TimeoutFailsPendingChannels verifies a channel still running after the settle grace is FAILED
func TestDispatch_TimeoutFailsPendingChannels(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	defer close(release)

	slow := &fakeChannel{kind: entity.ChannelEmail, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		<-release
		return sentAll(entity.ChannelEmail, rs)
	}}
	svc := NewService([]Channel{
		&fakeChannel{kind: entity.ChannelInApp},
		&fakeChannel{kind: entity.ChannelPush},
		slow,
	}, nil, ServiceConfig{DispatchTimeout: 50 * time.Millisecond, SettleGrace: 20 * time.Millisecond})

	recipients := []entity.Recipient{{ID: 1, Email: "a@example.com"}, {ID: 2, Email: "b@example.com"}}

	// Act
	start := time.Now()
	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true}), recipients)
	elapsed := time.Since(start)

	// Assert
	assert.Less(t, elapsed, time.Second)
	email := report.Channels[entity.ChannelEmail]
	assert.Equal(t, 2, email.Failed)
	for _, e := range email.Errors {
		assert.Equal(t, "timeout", e.Message)
	}
	assert.Equal(t, 2, report.Channels[entity.ChannelInApp].Sent)
	assert.Equal(t, 2, report.Channels[entity.ChannelPush].Sent)
}

// TestDispatch_TimeoutKeepsSettledResults verifies sends completed before the deadline stay SENT
// and only the recipients never reached are FAILED "timeout"
func TestDispatch_TimeoutKeepsSettledResults(t *testing.T) {
	// Arrange
	sms := NewSMSChannel(NewFallbackChain(), BatchConfig{Size: 5, Concurrency: 5, Delay: 300 * time.Millisecond}, "44")
	svc := NewService([]Channel{sms}, nil, ServiceConfig{DispatchTimeout: 150 * time.Millisecond, SettleGrace: time.Second})

	recipients := make([]entity.Recipient, 12)
	for i := range recipients {
		recipients[i] = entity.Recipient{ID: int64(i + 1), Phone: fmt.Sprintf("+4477009%05d", i+1)}
	}

	// Act
	report := dispatchWith(t, svc, notification(entity.PriorityHigh, entity.ChannelOptions{}), recipients)

	// Assert
	got := report.Channels[entity.ChannelSMS]
	assert.Equal(t, 5, got.Sent)
	assert.Equal(t, 7, got.Failed)
	require.Len(t, got.Errors, 7)
	for i, e := range got.Errors {
		assert.Equal(t, int64(i+6), e.RecipientID)
		assert.Equal(t, "timeout", e.Message)
	}
}

// TestDispatch_ChannelReturningAtDeadlineKeepsResults verifies a channel that hands back its
// results right as the deadline passes is not reported as timed out
func TestDispatch_ChannelReturningAtDeadlineKeepsResults(t *testing.T) {
	// Arrange
	email := &fakeChannel{kind: entity.ChannelEmail, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		<-ctx.Done()
		return sentAll(entity.ChannelEmail, rs)
	}}
	svc := NewService([]Channel{email}, nil, ServiceConfig{DispatchTimeout: 30 * time.Millisecond, SettleGrace: time.Second})

	recipients := []entity.Recipient{{ID: 1, Email: "a@example.com"}, {ID: 2, Email: "b@example.com"}}

	// Act
	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true}), recipients)

	// Assert
	assert.Equal(t, 2, report.Channels[entity.ChannelEmail].Sent)
	assert.Zero(t, report.Channels[entity.ChannelEmail].Failed)
}

// TestDispatch_CallerCancellation verifies a canceled caller context is reported as canceled
func TestDispatch_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	inApp := &fakeChannel{kind: entity.ChannelInApp, send: func(_ context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		cancel()
		<-release
		return sentAll(entity.ChannelInApp, rs)
	}}
	svc := NewService([]Channel{inApp, &fakeChannel{kind: entity.ChannelPush, check: func(entity.Recipient) error { return ErrNoContact }}}, nil, ServiceConfig{SettleGrace: 20 * time.Millisecond})

	report, err := svc.Dispatch(ctx, notification(entity.PriorityNormal, entity.ChannelOptions{}), []entity.Recipient{{ID: 1}})

	require.NoError(t, err)
	require.Len(t, report.Channels[entity.ChannelInApp].Errors, 1)
	assert.Equal(t, "canceled", report.Channels[entity.ChannelInApp].Errors[0].Message)
}

// TestDispatch_ChannelsRunConcurrently verifies slow channels overlap instead of queueing
func TestDispatch_ChannelsRunConcurrently(t *testing.T) {
	const delay = 150 * time.Millisecond
	slow := func(kind entity.Channel) *fakeChannel {
		return &fakeChannel{kind: kind, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
			time.Sleep(delay)
			return sentAll(kind, rs)
		}}
	}
	svc := NewService([]Channel{slow(entity.ChannelInApp), slow(entity.ChannelPush), slow(entity.ChannelEmail)}, nil, ServiceConfig{})

	start := time.Now()
	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true}),
		[]entity.Recipient{{ID: 1, Email: "a@example.com"}})
	elapsed := time.Since(start)

	assert.Equal(t, 3, report.TotalSent)
	assert.Less(t, elapsed, 2*delay)
}

// TestDispatch_ReconcilesAdapterResults verifies misbehaving adapters cannot break the one-result rule
func TestDispatch_ReconcilesAdapterResults(t *testing.T) {
	// Arrange
	email := &fakeChannel{kind: entity.ChannelEmail, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		return []entity.DeliveryResult{
			entity.Sent(entity.ChannelEmail, 1, "fake", "a"),
			entity.Sent(entity.ChannelEmail, 1, "fake", "duplicate"),
			{Channel: entity.ChannelSMS, RecipientID: 2, Status: entity.StatusSent, Provider: "fake"},
			{Channel: entity.ChannelEmail, RecipientID: 3, Status: "DELIVERED", Provider: "fake"},
			entity.Sent(entity.ChannelEmail, 99, "fake", "stranger"),
		}
	}}
	svc := NewService([]Channel{&fakeChannel{kind: entity.ChannelInApp}, &fakeChannel{kind: entity.ChannelPush}, email}, nil, ServiceConfig{})
	recipients := []entity.Recipient{
		{ID: 1, Email: "a@example.com"},
		{ID: 2, Email: "b@example.com"},
		{ID: 3, Email: "c@example.com"},
		{ID: 4, Email: "d@example.com"},
	}

	// Act
	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{SendEmail: true}), recipients)

	// Assert
	summary := report.Channels[entity.ChannelEmail]
	assert.Equal(t, 2, summary.Sent, "recipient 1 once, recipient 2 with channel corrected")
	assert.Equal(t, 2, summary.Failed)
	assert.ElementsMatch(t, []entity.DeliveryError{
		{RecipientID: 3, Message: `invalid result status "DELIVERED"`},
		{RecipientID: 4, Message: "no result from channel"},
	}, summary.Errors)
}

// TestDispatch_SkippedResultsInRequestOrder verifies skipped and sent results interleave by recipient
func TestDispatch_SkippedResultsInRequestOrder(t *testing.T) {
	s := &service{channels: map[entity.Channel]Channel{
		entity.ChannelSMS: NewSMSChannel(nil, BatchConfig{}, ""),
	}}
	recipients := []entity.Recipient{
		{ID: 1, Phone: "+15550100001"},
		{ID: 2, Phone: "abc"},
		{ID: 3},
		{ID: 4, Phone: "+15550100004"},
	}

	p := s.plan(entity.ChannelSMS, recipients)
	raw := []entity.DeliveryResult{
		entity.Sent(entity.ChannelSMS, 4, "mock", "m4"),
		entity.Sent(entity.ChannelSMS, 1, "mock", "m1"),
	}
	got := p.assemble("req", recipients, raw)

	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].RecipientID)
	assert.Equal(t, entity.StatusSkipped, got[1].Status)
	assert.Equal(t, int64(2), got[1].RecipientID)
	assert.Equal(t, int64(4), got[2].RecipientID)
}

// TestDispatch_ChannelNotRegistered verifies enabled channels without adapter fail every recipient
func TestDispatch_ChannelNotRegistered(t *testing.T) {
	svc := NewService([]Channel{&fakeChannel{kind: entity.ChannelInApp}}, nil, ServiceConfig{})
	recipients := []entity.Recipient{{ID: 1}, {ID: 2}}

	report := dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{}), recipients)

	push := report.Channels[entity.ChannelPush]
	assert.Equal(t, 2, push.Failed)
	for _, e := range push.Errors {
		assert.Equal(t, "channel not registered", e.Message)
	}
	assert.Equal(t, 50, report.DeliveryRate)
	assert.True(t, report.OverallSuccess)
}

// TestNewService_FirstAdapterWins verifies duplicate adapters are ignored
func TestNewService_FirstAdapterWins(t *testing.T) {
	first := &fakeChannel{kind: entity.ChannelInApp}
	second := &fakeChannel{kind: entity.ChannelInApp}
	svc := NewService([]Channel{nil, first, second, &fakeChannel{kind: entity.ChannelPush}}, nil, ServiceConfig{})

	_ = dispatchWith(t, svc, notification(entity.PriorityNormal, entity.ChannelOptions{}), []entity.Recipient{{ID: 1}})

	assert.Len(t, first.received(), 1)
	assert.Empty(t, second.received())
}

// TestDispatch_RequestIDPropagation verifies the request id reaches channels
func TestDispatch_RequestIDPropagation(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	capture := &fakeChannel{kind: entity.ChannelInApp, send: func(ctx context.Context, rs []entity.Recipient) []entity.DeliveryResult {
		mu.Lock()
		seen = append(seen, requestid.FromContext(ctx))
		mu.Unlock()
		return sentAll(entity.ChannelInApp, rs)
	}}
	svc := NewService([]Channel{capture, &fakeChannel{kind: entity.ChannelPush}}, nil, ServiceConfig{})
	n := notification(entity.PriorityNormal, entity.ChannelOptions{})

	ctx := requestid.WithRequestID(context.Background(), "req-123")
	_, err := svc.Dispatch(ctx, n, []entity.Recipient{{ID: 1}})
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), n, []entity.Recipient{{ID: 1}})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "req-123", seen[0])
	assert.NotEmpty(t, seen[1])
	assert.NotEqual(t, "req-123", seen[1])
}

// TestGetDeliveryStats verifies the stored delivery rate calculation
func TestGetDeliveryStats(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		repo     *memDeliveryRepo
		from, to *time.Time
		want     *entity.DeliveryStats
		wantErr  error
	}{
		{
			name: "rounded rate",
			repo: &memDeliveryRepo{total: 3, delivered: 2},
			from: &from, to: &to,
			want: &entity.DeliveryStats{TotalNotifications: 3, DeliveredNotifications: 2, DeliveryRate: 67},
		},
		{
			name: "no records",
			repo: &memDeliveryRepo{},
			want: &entity.DeliveryStats{},
		},
		{
			name:    "inverted range",
			repo:    &memDeliveryRepo{},
			from:    &to,
			to:      &from,
			wantErr: entity.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, tt.repo, ServiceConfig{})

			got, err := svc.GetDeliveryStats(context.Background(), tt.from, tt.to)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestGetDeliveryStats_RepositoryErrors verifies storage errors are wrapped
func TestGetDeliveryStats_RepositoryErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	svc := NewService(nil, &memDeliveryRepo{countErr: dbErr}, ServiceConfig{})

	_, err := svc.GetDeliveryStats(context.Background(), nil, nil)
	assert.ErrorIs(t, err, dbErr)

	_, err = NewService(nil, nil, ServiceConfig{}).GetDeliveryStats(context.Background(), nil, nil)
	assert.Error(t, err)
}

// TestGetChannelHealth verifies registration and provider health per channel
func TestGetChannelHealth(t *testing.T) {
	// Arrange
	channels := []Channel{
		NewInAppChannel(&memDeliveryRepo{}, BatchConfig{}),
		NewSMSChannel(nil, BatchConfig{}, ""),
		NewWhatsAppChannel(nil, WhatsAppOptions{Policy: config.PolicyLegacy}),
		NewEmailChannel(EmailOptions{}, func() (notifier.EmailTransport, error) { return &fakeEmail{}, nil }),
	}
	svc := NewService(channels, nil, ServiceConfig{})

	// Act
	statuses := svc.GetChannelHealth()

	// Assert
	require.Len(t, statuses, len(entity.AllChannels))
	byKind := map[entity.Channel]ChannelHealthStatus{}
	for _, s := range statuses {
		byKind[s.Channel] = s
	}

	assert.True(t, byKind[entity.ChannelInApp].Healthy)
	assert.False(t, byKind[entity.ChannelPush].Registered)
	assert.True(t, byKind[entity.ChannelEmail].Healthy)
	assert.True(t, byKind[entity.ChannelSMS].Registered)
	assert.False(t, byKind[entity.ChannelSMS].Healthy, "mock only is not a usable provider")
	assert.True(t, byKind[entity.ChannelWhatsApp].Registered)
	assert.False(t, byKind[entity.ChannelWhatsApp].Healthy)
}

func TestAnyUsable(t *testing.T) {
	assert.False(t, anyUsable(nil))
	assert.True(t, anyUsable([]ProviderHealth{{Provider: "twilio", Configured: true}}))
	assert.False(t, anyUsable([]ProviderHealth{{Provider: "mock", Configured: false}}))
}

func ptr[T any](v T) *T { return &v }
