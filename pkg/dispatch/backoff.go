package dispatch

import (
	"math"
	"math/rand"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// delayFor returns the delay before the given retry, exponential with
// jitter. Retry 1 waits BaseDelay, each following retry multiplies by
// Multiplier, capped at MaxDelay. Jitter spreads simultaneous retries so
// a recovering provider is not hit by a synchronized burst.
func delayFor(cfg notify.RetryConfig, retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	interval := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(retry-1))

	if cfg.Jitter > 0 {
		randomJitter := (rand.Float64()*2 - 1) * cfg.Jitter
		interval = interval * (1 + randomJitter)
	}

	if ceiling := float64(cfg.MaxDelay); interval > ceiling {
		interval = ceiling
	}

	return time.Duration(interval)
}
