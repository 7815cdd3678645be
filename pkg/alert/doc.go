// Package alert manages operational alerts for the notification engine:
// deduplication by fingerprint, routed fan-out to notifiers with cooldown
// and hourly caps, time-based escalation of unresolved alerts, and a
// bounded in-memory history.
//
// Alerts are identified by a fingerprint derived from category, title and
// source. Repeats of an unresolved alert increment its occurrence count
// instead of creating duplicates, while still fanning out to notifiers
// subject to per-route spam control. Escalation and resolution events
// bypass spam control because each fires at most once per alert.
//
// # Usage
//
//	manager := alert.NewManager(alert.DefaultConfig(),
//		alert.WithNotifier(
//			alert.NewWebhookNotifier("ops-hook", hookURL, secret),
//			alert.RouteConfig{MinSeverity: alert.SeverityError, Escalations: true},
//		),
//	)
//
//	a, err := manager.CreateAlert(ctx, alert.CreateParams{
//		Severity: alert.SeverityCritical,
//		Category: "delivery",
//		Title:    "Email provider unreachable",
//		Source:   "dispatcher",
//	})
//
//	// Later, once the condition clears:
//	manager.ResolveAlert(ctx, a.Fingerprint, "oncall")
//
// CheckEscalations is designed to run periodically under a worker runner:
//
//	runner.Add("alert-escalations", time.Minute, manager.CheckEscalations)
//
// The manager also satisfies the dispatcher's alert sink, so exhausted
// deliveries surface as critical alerts:
//
//	dispatcher, err := dispatch.NewDispatcher(registry, dispatch.WithAlertSink(manager))
package alert
