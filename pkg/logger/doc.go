// Package logger builds configured slog.Logger instances for the
// notification engine, with context-driven attribute injection and a set
// of strongly named attribute helpers shared across packages.
//
// The package is a thin layer over log/slog: it never invents its own
// logging API, it only removes the boilerplate of wiring handlers,
// formats and per-environment defaults.
//
// # Usage
//
//	import "github.com/dmitrymomot/notifykit/pkg/logger"
//
//	log := logger.New(
//		logger.WithProduction("notifykit"),
//		logger.WithContextValue("notification_id", ctxKeyNotificationID),
//	)
//	logger.SetAsDefault(log)
//
// # Options
//
//   - WithLevel / WithFormat / WithOutput – core handler knobs.
//   - WithAttr – static attributes attached to every record.
//   - WithContextExtractors / WithContextValue – dynamic attributes pulled
//     from context at log time.
//   - WithDevelopment / WithStaging / WithProduction – sensible defaults per
//     environment.
//
// # Attribute helpers
//
// Helpers such as RecipientID, NotificationID, Channel, Fingerprint and
// Error keep attribute keys consistent across the codebase:
//
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
//		logger.NotificationID(id),
//		logger.Channel("email"),
//		logger.Error(err),
//	)
package logger
