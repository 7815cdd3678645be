// Package webhook provides reliable JSON-over-HTTP delivery with retries,
// exponential backoff, circuit breaking and HMAC request signing.
//
// Inside the notification engine it serves two consumers:
//
//   - the gateway-backed channel providers (SMS, push, phone call) post
//     delivery requests to their gateways through it, with retries disabled
//     because the dispatcher owns the retry schedule;
//   - the alert webhook notifier delivers alert events to chat and pager
//     endpoints with signing and a per-endpoint circuit breaker, so a dead
//     integration cannot absorb unbounded attempts.
//
// # Usage
//
//	sender := webhook.NewSender()
//
//	err := sender.Send(ctx, endpoint, payload,
//	    webhook.WithTimeout(5*time.Second),
//	    webhook.WithSignature(secret),
//	    webhook.WithCircuitBreaker(cb),
//	)
//
// Permanent failures (4xx responses other than 408/425/429) are not
// retried; temporary failures are retried per the configured backoff.
// ErrCircuitOpen is returned without any network attempt while the
// endpoint's breaker is open.
package webhook
