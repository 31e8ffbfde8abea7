package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/handler/http/requestid"
	"schoolnotify/internal/observability/tracing"
	"schoolnotify/internal/repository"
)

// Service fans notifications out to recipients across all channels.
type Service interface {
	// SendNotification builds a notification from title, message and opts and
	// dispatches it.
	//
	// Returns:
	//   - *entity.DeliveryReport: aggregated outcome of every channel
	//   - error: ErrNoRecipients when recipients is empty, or an
	//     entity.ErrInvalidInput wrapped validation error. Provider failures
	//     never surface here; they are part of the report.
	SendNotification(ctx context.Context, recipients []entity.Recipient, title, message string, opts Options) (*entity.DeliveryReport, error)

	// Dispatch sends n to recipients on every enabled channel concurrently and
	// returns once every channel has finished or the dispatch deadline passed.
	Dispatch(ctx context.Context, n *entity.Notification, recipients []entity.Recipient) (*entity.DeliveryReport, error)

	// GetDeliveryStats summarises stored in-app records created in [from, to).
	// Either bound may be nil.
	GetDeliveryStats(ctx context.Context, from, to *time.Time) (*entity.DeliveryStats, error)

	// GetChannelHealth reports every channel with its providers and their
	// circuit breaker state.
	GetChannelHealth() []ChannelHealthStatus
}

// Options carries the optional fields of SendNotification.
type Options struct {
	Priority entity.Priority
	Type     entity.NotificationType

	// SendEmail defaults to true when nil.
	SendEmail    *bool
	SendWhatsApp bool
	SendSMS      bool

	CorrelationID *int64
	SentBy        string
}

// ServiceConfig tunes the dispatcher.
type ServiceConfig struct {
	// DispatchTimeout bounds one dispatch. Once it passes, running channels
	// stop starting sends and the recipients they never reached are reported
	// FAILED "timeout". Sends that already completed keep their outcome.
	// Zero disables the bound.
	DispatchTimeout time.Duration

	// SettleGrace is how long the dispatcher waits after the deadline for
	// running channels to return what they settled. A channel that is still
	// running afterwards is reported FAILED for all its recipients.
	// Zero means DefaultSettleGrace.
	SettleGrace time.Duration
}

// DefaultSettleGrace is used when ServiceConfig.SettleGrace is zero.
const DefaultSettleGrace = 2 * time.Second

func (c ServiceConfig) settleGrace() time.Duration {
	if c.SettleGrace > 0 {
		return c.SettleGrace
	}
	return DefaultSettleGrace
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Channel    entity.Channel   `json:"channel"`
	Registered bool             `json:"registered"`
	Healthy    bool             `json:"healthy"`
	Providers  []ProviderHealth `json:"providers,omitempty"`
}

type service struct {
	channels map[entity.Channel]Channel
	stats    repository.DeliveryRepository
	cfg      ServiceConfig
}

// NewService creates a dispatcher over channels. When two channels report
// the same kind the first one wins. stats may be nil if GetDeliveryStats is
// not used.
func NewService(channels []Channel, stats repository.DeliveryRepository, cfg ServiceConfig) Service {
	byKind := make(map[entity.Channel]Channel, len(channels))
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if _, dup := byKind[ch.Kind()]; dup {
			slog.Warn("duplicate channel adapter ignored", slog.String("channel", string(ch.Kind())))
			continue
		}
		byKind[ch.Kind()] = ch
	}
	SetChannelsRegistered(len(byKind))

	return &service{channels: byKind, stats: stats, cfg: cfg}
}

// SendNotification implements Service.SendNotification.
func (s *service) SendNotification(ctx context.Context, recipients []entity.Recipient, title, message string, opts Options) (*entity.DeliveryReport, error) {
	channels := entity.DefaultChannelOptions()
	if opts.SendEmail != nil {
		channels.SendEmail = *opts.SendEmail
	}
	channels.SendWhatsApp = opts.SendWhatsApp
	channels.SendSMS = opts.SendSMS

	return s.Dispatch(ctx, &entity.Notification{
		Title:         title,
		Message:       message,
		Priority:      opts.Priority,
		Type:          opts.Type,
		Channels:      channels,
		CorrelationID: opts.CorrelationID,
		SentBy:        opts.SentBy,
	}, recipients)
}

// Dispatch implements Service.Dispatch.
func (s *service) Dispatch(ctx context.Context, n *entity.Notification, recipients []entity.Recipient) (*entity.DeliveryReport, error) {
	if len(recipients) == 0 {
		RecordDispatch("rejected")
		return nil, ErrNoRecipients
	}
	if n == nil {
		RecordDispatch("rejected")
		return nil, fmt.Errorf("%w: notification is required", entity.ErrInvalidInput)
	}

	notification := *n
	notification.Normalize()
	if err := notification.Validate(); err != nil {
		RecordDispatch("rejected")
		return nil, fmt.Errorf("%w: %w", entity.ErrInvalidInput, err)
	}

	ctx, requestID := requestid.Ensure(ctx)

	ctx, span := tracing.GetTracer().Start(ctx, "notify.Dispatch",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.Int("notify.recipients", len(recipients)),
			attribute.String("notify.priority", string(notification.Priority)),
			attribute.String("notify.type", string(notification.Type)),
		))
	defer span.End()

	if s.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
	}

	plans := make([]*channelPlan, 0, len(entity.AllChannels))
	for _, kind := range enabledChannels(&notification) {
		plans = append(plans, s.plan(kind, recipients))
	}

	slog.Info("dispatching notification",
		slog.String("request_id", requestID),
		slog.String("priority", string(notification.Priority)),
		slog.String("type", string(notification.Type)),
		slog.Int("recipients", len(recipients)),
		slog.Int("channels", len(plans)))

	raw := s.run(ctx, requestID, &notification, plans)

	results := make(map[entity.Channel][]entity.DeliveryResult, len(plans))
	for _, p := range plans {
		results[p.kind] = p.assemble(requestID, recipients, raw[p.kind])
		RecordResults(p.kind, results[p.kind])
	}

	report := Aggregate(len(recipients), results)

	SetLastDeliveryRate(report.DeliveryRate)
	if report.OverallSuccess {
		RecordDispatch("success")
	} else {
		RecordDispatch("degraded")
	}

	span.SetAttributes(
		attribute.Int("notify.sent", report.TotalSent),
		attribute.Int("notify.failed", report.TotalFailed),
		attribute.Int("notify.skipped", report.TotalSkipped),
		attribute.Int("notify.delivery_rate", report.DeliveryRate),
	)

	slog.Info("notification dispatched",
		slog.String("request_id", requestID),
		slog.Int("recipients", report.Recipients),
		slog.Int("channels_attempted", report.ChannelsAttempted),
		slog.Int("sent", report.TotalSent),
		slog.Int("failed", report.TotalFailed),
		slog.Int("skipped", report.TotalSkipped),
		slog.Int("delivery_rate", report.DeliveryRate))

	return report, nil
}

// enabledChannels applies the channel-enable rules to n in report order.
// In-app and push are always attempted; HIGH priority forces SMS.
func enabledChannels(n *entity.Notification) []entity.Channel {
	out := []entity.Channel{entity.ChannelInApp, entity.ChannelPush}
	if n.Channels.SendEmail {
		out = append(out, entity.ChannelEmail)
	}
	if n.SMSRequested() {
		out = append(out, entity.ChannelSMS)
	}
	if n.Channels.SendWhatsApp {
		out = append(out, entity.ChannelWhatsApp)
	}
	return out
}

// channelPlan is the eligibility decision of one channel for one dispatch.
type channelPlan struct {
	kind    entity.Channel
	adapter Channel

	eligible    []entity.Recipient
	eligibleIdx []int                         // index of each eligible recipient in the request
	skipped     map[int]entity.DeliveryResult // keyed by request index
}

func (s *service) plan(kind entity.Channel, recipients []entity.Recipient) *channelPlan {
	p := &channelPlan{kind: kind, adapter: s.channels[kind], skipped: map[int]entity.DeliveryResult{}}
	if p.adapter == nil {
		return p
	}

	for i, r := range recipients {
		err := p.adapter.Check(r)
		switch {
		case err == nil:
			p.eligible = append(p.eligible, r)
			p.eligibleIdx = append(p.eligibleIdx, i)
		case errors.Is(err, ErrNoContact):
		default:
			p.skipped[i] = entity.Skipped(kind, r.ID, err.Error())
		}
	}
	return p
}

type channelOutcome struct {
	kind    entity.Channel
	results []entity.DeliveryResult
}

// run starts one goroutine per channel with eligible recipients and waits
// for all of them. When ctx ends first, the adapters abort the sends they have
// not started and run keeps collecting for up to the settle grace, so results
// already settled are reported as they are. Channels still running after the
// grace are reported FAILED for all their recipients and their late results
// are discarded.
func (s *service) run(ctx context.Context, requestID string, n *entity.Notification, plans []*channelPlan) map[entity.Channel][]entity.DeliveryResult {
	out := make(chan channelOutcome, len(plans))
	pending := make(map[entity.Channel]*channelPlan, len(plans))

	for _, p := range plans {
		if p.adapter == nil || len(p.eligible) == 0 {
			continue
		}
		pending[p.kind] = p
		go s.runChannel(ctx, requestID, n, p, out)
	}

	collected := make(map[entity.Channel][]entity.DeliveryResult, len(plans))
	collect := func(o channelOutcome) {
		if _, ok := pending[o.kind]; ok {
			collected[o.kind] = o.results
			delete(pending, o.kind)
		}
	}

	for len(pending) > 0 {
		select {
		case o := <-out:
			collect(o)
		case <-ctx.Done():
			s.settle(ctx.Err(), requestID, out, pending, collect)
			for kind, p := range pending {
				collected[kind] = failAll(kind, p.eligible, "", contextDetail(ctx.Err()))
			}
			return collected
		}
	}
	return collected
}

// settle collects outcomes of channels still pending when the dispatch ended,
// waiting at most the settle grace. Outcomes already buffered are always taken.
func (s *service) settle(cause error, requestID string, out <-chan channelOutcome, pending map[entity.Channel]*channelPlan, collect func(channelOutcome)) {
	detail := contextDetail(cause)
	for kind, p := range pending {
		RecordChannelTimeout(kind)
		slog.Warn("channel did not finish before dispatch deadline",
			slog.String("request_id", requestID),
			slog.String("channel", string(kind)),
			slog.Int("recipients", len(p.eligible)),
			slog.String("reason", detail))
	}

	grace := time.NewTimer(s.cfg.settleGrace())
	defer grace.Stop()

	for len(pending) > 0 {
		select {
		case o := <-out:
			collect(o)
		case <-grace.C:
			// drain whatever arrived together with the timer
			for {
				select {
				case o := <-out:
					collect(o)
				default:
					for kind := range pending {
						slog.Warn("channel abandoned after settle grace",
							slog.String("request_id", requestID),
							slog.String("channel", string(kind)))
					}
					return
				}
			}
		}
	}
}

// runChannel sends to one channel and always delivers exactly one outcome.
func (s *service) runChannel(ctx context.Context, requestID string, n *entity.Notification, p *channelPlan, out chan<- channelOutcome) {
	IncrementActiveChannels()
	defer DecrementActiveChannels()

	ctx, span := tracing.GetTracer().Start(ctx, "notify.channel."+string(p.kind),
		trace.WithAttributes(attribute.Int("notify.recipients", len(p.eligible))))
	defer span.End()

	start := time.Now()
	var results []entity.DeliveryResult

	defer func() {
		if r := recover(); r != nil {
			RecordChannelPanic(p.kind)
			slog.Error("panic in notification channel",
				slog.String("request_id", requestID),
				slog.String("channel", string(p.kind)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			span.SetStatus(codes.Error, "panic")
			results = failAll(p.kind, p.eligible, "", fmt.Sprintf("panic: %v", r))
		}

		duration := time.Since(start)
		RecordChannelDuration(p.kind, duration)
		slog.Debug("channel finished",
			slog.String("request_id", requestID),
			slog.String("channel", string(p.kind)),
			slog.Int("results", len(results)),
			slog.Duration("send_duration", duration))

		out <- channelOutcome{kind: p.kind, results: results}
	}()

	results = p.adapter.SendBulk(ctx, p.eligible, n)
}

// assemble reconciles the adapter's results with the plan and returns the
// channel's results in request order, SKIPPED entries included.
//
// Each eligible recipient takes the first unused result carrying its id. An
// eligible recipient without one is FAILED "no result from channel"; results
// left over afterwards are dropped.
func (p *channelPlan) assemble(requestID string, recipients []entity.Recipient, raw []entity.DeliveryResult) []entity.DeliveryResult {
	if p.adapter == nil {
		return failAll(p.kind, recipients, "", ErrChannelNotRegistered.Error())
	}

	queue := make(map[int64][]entity.DeliveryResult, len(raw))
	for _, r := range raw {
		queue[r.RecipientID] = append(queue[r.RecipientID], r)
	}

	out := make([]entity.DeliveryResult, 0, len(p.eligible)+len(p.skipped))
	next := 0
	for i, r := range recipients {
		if res, ok := p.skipped[i]; ok {
			out = append(out, res)
			continue
		}
		if next >= len(p.eligibleIdx) || p.eligibleIdx[next] != i {
			continue
		}
		next++

		q := queue[r.ID]
		if len(q) == 0 {
			out = append(out, entity.Failed(p.kind, r.ID, "", detailNoResult))
			continue
		}
		res := q[0]
		queue[r.ID] = q[1:]
		res.Channel = p.kind
		if !validStatus(res.Status) {
			res = entity.Failed(p.kind, r.ID, res.Provider, fmt.Sprintf("invalid result status %q", res.Status))
		}
		out = append(out, res)
	}

	dropped := 0
	for _, q := range queue {
		dropped += len(q)
	}
	if dropped > 0 {
		slog.Warn("dropped unmatched channel results",
			slog.String("request_id", requestID),
			slog.String("channel", string(p.kind)),
			slog.Int("dropped", dropped))
	}
	return out
}

func validStatus(s entity.DeliveryStatus) bool {
	return s == entity.StatusSent || s == entity.StatusFailed || s == entity.StatusSkipped
}

// GetDeliveryStats implements Service.GetDeliveryStats.
func (s *service) GetDeliveryStats(ctx context.Context, from, to *time.Time) (*entity.DeliveryStats, error) {
	dateRange := entity.DateRange{From: from, To: to}
	if err := dateRange.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInvalidInput, err)
	}
	if s.stats == nil {
		return nil, errors.New("delivery stats: no repository configured")
	}

	total, err := s.stats.CountTotal(ctx, dateRange)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	delivered, err := s.stats.CountDelivered(ctx, dateRange)
	if err != nil {
		return nil, fmt.Errorf("count delivered notifications: %w", err)
	}

	stats := &entity.DeliveryStats{TotalNotifications: total, DeliveredNotifications: delivered}
	if total > 0 {
		stats.DeliveryRate = int(math.Round(float64(delivered) * 100 / float64(total)))
	}
	return stats, nil
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(entity.AllChannels))
	for _, kind := range entity.AllChannels {
		status := ChannelHealthStatus{Channel: kind}
		ch, ok := s.channels[kind]
		if ok {
			status.Registered = true
			if hr, ok := ch.(HealthReporter); ok {
				status.Providers = hr.Health()
			}
			status.Healthy = anyUsable(status.Providers)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// anyUsable reports whether at least one configured provider has a closed breaker.
func anyUsable(providers []ProviderHealth) bool {
	for _, p := range providers {
		if p.Configured && (p.CircuitBreaker == nil || !p.CircuitBreaker.Open) {
			return true
		}
	}
	return false
}
