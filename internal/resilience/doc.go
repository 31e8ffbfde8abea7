// Package resilience groups the fault tolerance helpers used by the delivery engine.
//
// The package supports:
//   - Circuit breakers around push, SMS and WhatsApp provider calls
//   - Retry with exponential backoff and jitter for transient database errors
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.PushAPIConfig())
//	tickets, err := circuitbreaker.Call(cb, func() ([]PushTicket, error) {
//	    return client.post(ctx, batch)
//	})
//
//	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
//	    id, err = repo.RecordInApp(ctx, rec)
//	    return err
//	})
package resilience
