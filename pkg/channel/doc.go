// Package channel implements the delivery channels of the notification
// engine behind a single Provider interface.
//
// A Provider performs exactly one external delivery attempt per Send call
// and reports the outcome as a notify.DeliveryResult instead of an error:
// transport failures, missing addresses and policy rejections are expected,
// frequent outcomes the dispatcher records and acts on, not exceptional
// conditions. Every provider bounds its own execution time.
//
// Providers:
//
//   - EmailProvider: sends through pkg/email (Postmark in production).
//   - SMSProvider, PushProvider, PhoneCallProvider: JSON POST to an HTTP
//     gateway through pkg/webhook with retries disabled (the dispatcher
//     owns the retry schedule). PhoneCallProvider additionally rejects any
//     request below critical priority; outbound calls are never placed for
//     routine notifications.
//   - InAppProvider: stores into a bounded per-recipient Inbox.
//   - The websocket provider lives in pkg/realtime next to the connection
//     registry it needs.
//
// The Registry maps channels to providers and validates the whole set at
// construction, so dispatch-time resolution can only fail for channels
// that were never wired.
package channel
