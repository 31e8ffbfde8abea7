// Package notifier contains the wire clients of the external delivery providers:
// an Expo-compatible push gateway, Twilio and a generic JSON gateway for SMS,
// the WhatsApp Business API, and SMTP or Postmark for email.
//
// Clients only speak the provider protocol. They classify non-2xx responses into
// RateLimitError, ClientError and ServerError and guard calls with a circuit
// breaker. Eligibility, batching and result mapping live in the notify use case.
package notifier
