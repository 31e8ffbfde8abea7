package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schoolnotify/internal/domain/entity"
)

// Prometheus metrics for notification delivery monitoring
var (
	// dispatchTotal tracks dispatch calls by outcome
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of notification dispatches",
		},
		[]string{"outcome"}, // outcome: success|degraded|rejected
	)

	// deliveryResultsTotal tracks per-recipient results per channel
	deliveryResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_results_total",
			Help: "Total number of per-recipient delivery results",
		},
		[]string{"channel", "status"}, // status: SENT|FAILED|SKIPPED
	)

	// fallbackTotal tracks SMS deliveries served by a fallback provider
	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_fallback_total",
			Help: "Total number of deliveries served by a fallback provider",
		},
		[]string{"provider"},
	)

	// batchesTotal tracks provider batches started per channel
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_batches_total",
			Help: "Total number of provider batches started",
		},
		[]string{"channel"},
	)

	// channelDuration tracks how long each channel took within a dispatch
	channelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_channel_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"channel"},
	)

	// channelTimeoutsTotal tracks channels cut off by the dispatch timeout
	channelTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_timeouts_total",
			Help: "Total number of channels that did not finish before the dispatch deadline",
		},
		[]string{"channel"},
	)

	// channelPanicsTotal tracks recovered channel panics
	channelPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_panics_total",
			Help: "Total number of recovered channel panics",
		},
		[]string{"channel"},
	)

	// lastDeliveryRate holds the delivery rate of the most recent dispatch
	lastDeliveryRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_last_delivery_rate_percent",
			Help: "Delivery rate of the most recent dispatch",
		},
	)

	// activeChannels tracks channels currently sending
	activeChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_active_channels",
			Help: "Number of channels currently sending",
		},
	)

	// channelsRegistered tracks the number of registered channel adapters
	channelsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_channels_registered",
			Help: "Number of registered notification channels",
		},
	)
)

// RecordDispatch records the outcome of one dispatch call.
//
// Parameters:
//   - outcome: success, degraded (delivery rate below threshold) or rejected
func RecordDispatch(outcome string) {
	dispatchTotal.WithLabelValues(outcome).Inc()
}

// RecordResults increments the result counter for every result of a channel.
func RecordResults(channel entity.Channel, results []entity.DeliveryResult) {
	for _, r := range results {
		deliveryResultsTotal.WithLabelValues(string(channel), string(r.Status)).Inc()
	}
}

// RecordFallback records a delivery served by a provider other than the primary.
func RecordFallback(provider string) {
	fallbackTotal.WithLabelValues(provider).Inc()
}

// RecordBatch records that a channel started a provider batch.
func RecordBatch(channel entity.Channel) {
	batchesTotal.WithLabelValues(string(channel)).Inc()
}

// RecordChannelDuration records how long a channel took to return.
func RecordChannelDuration(channel entity.Channel, duration time.Duration) {
	channelDuration.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

// RecordChannelTimeout records a channel that missed the dispatch deadline.
func RecordChannelTimeout(channel entity.Channel) {
	channelTimeoutsTotal.WithLabelValues(string(channel)).Inc()
}

// RecordChannelPanic records a recovered channel panic.
func RecordChannelPanic(channel entity.Channel) {
	channelPanicsTotal.WithLabelValues(string(channel)).Inc()
}

// SetLastDeliveryRate sets the delivery rate gauge.
func SetLastDeliveryRate(rate int) {
	lastDeliveryRate.Set(float64(rate))
}

// IncrementActiveChannels increments the active channels gauge by 1.
func IncrementActiveChannels() {
	activeChannels.Inc()
}

// DecrementActiveChannels decrements the active channels gauge by 1.
func DecrementActiveChannels() {
	activeChannels.Dec()
}

// SetChannelsRegistered sets the number of registered channels.
//
// This should be called when the notification service is initialized.
func SetChannelsRegistered(count int) {
	channelsRegistered.Set(float64(count))
}
