// Package notify defines the shared domain model of the notification engine:
// channels, priorities, delivery statuses, notification requests and the
// per-channel delivery results that make up a notification record.
//
// The package is deliberately dependency-free. Dispatching lives in
// pkg/dispatch, channel implementations in pkg/channel, real-time delivery
// in pkg/realtime and operational alerting in pkg/alert.
package notify
