// Package dispatch orchestrates notification delivery across channels.
//
// A Dispatcher takes a validated notify.Request and attempts each
// requested channel in caller order: rate limit check, provider
// resolution, then a time-bounded provider send. Failed sends on HIGH and
// CRITICAL notifications with a retry config are retried asynchronously
// with exponential backoff; retries never block the original Send call
// and are strictly ordered per (notification, channel) pair.
//
// When every channel of a high-priority notification ends in a failed or
// expired state, the dispatcher raises exactly one critical alert through
// the configured AlertSink so the condition is operationally visible.
//
// Every dispatch produces a notify.Record persisted through the Storage
// interface; MemoryStorage is provided for development and tests.
//
//	dispatcher, err := dispatch.NewDispatcher(registry,
//		dispatch.WithRateLimiter(limiter),
//		dispatch.WithAlertSink(alerts),
//		dispatch.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	rec, err := dispatcher.Send(ctx, req)
package dispatch
