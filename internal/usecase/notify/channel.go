// Package notify fans a notification out to recipients across the in-app, push,
// email, SMS and WhatsApp channels and aggregates the outcome into a
// DeliveryReport.
//
// The dispatcher owns eligibility and the concurrency barrier; each Channel owns
// its provider payloads, batching and error mapping. Channels never return
// errors: every provider failure becomes a FAILED DeliveryResult.
package notify

import (
	"context"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/resilience/circuitbreaker"
)

// Channel is one delivery medium.
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
//
// Context Handling:
//   - SendBulk must respect context cancellation; recipients not attempted
//     before the context ends are reported as FAILED
type Channel interface {
	// Kind identifies the channel.
	Kind() entity.Channel

	// Check decides whether r can be addressed on this channel.
	//
	// Returns:
	//   - nil: r is eligible and will be passed to SendBulk
	//   - ErrNoContact: r has no contact data for this channel and is excluded
	//     from the channel's counts
	//   - any other error: r has malformed contact data or opted out and is
	//     reported as SKIPPED with the error text
	Check(r entity.Recipient) error

	// SendBulk delivers n to every recipient and returns exactly one result
	// per recipient. Results may be in any order.
	SendBulk(ctx context.Context, recipients []entity.Recipient, n *entity.Notification) []entity.DeliveryResult
}

// HealthReporter is implemented by channels that can describe their providers.
type HealthReporter interface {
	Health() []ProviderHealth
}

// ProviderHealth describes one provider behind a channel.
type ProviderHealth struct {
	Provider       string                   `json:"provider"`
	Configured     bool                     `json:"configured"`
	CircuitBreaker *circuitbreaker.Snapshot `json:"circuit_breaker,omitempty"`
}

// breakerReporter is implemented by provider clients guarded by a circuit breaker.
type breakerReporter interface {
	Health() circuitbreaker.Snapshot
}

// providerHealth builds a ProviderHealth for a named provider, attaching its
// breaker snapshot when it has one.
func providerHealth(name string, configured bool, provider any) ProviderHealth {
	h := ProviderHealth{Provider: name, Configured: configured}
	if br, ok := provider.(breakerReporter); ok {
		snap := br.Health()
		h.CircuitBreaker = &snap
	}
	return h
}
