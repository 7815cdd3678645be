// Package worker runs the engine's periodic background loops (heartbeat
// monitoring, queue cleanup, alert escalation) under a single supervised
// lifecycle.
//
// Loops are registered by name with an interval and started together;
// panics and errors in one loop are isolated and logged without touching
// the others, and Stop shuts the whole set down with a bounded wait.
//
//	runner := worker.NewRunner(worker.WithLogger(log))
//	runner.Add("heartbeat-monitor", 30*time.Second, registry.ReapStale)
//	runner.Add("queue-cleanup", 5*time.Minute, registry.PurgeExpired)
//	runner.Start(ctx)
//	defer runner.Stop(shutdownCtx)
package worker
