package dispatch

import (
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// latencyWindow bounds the rolling latency average per channel.
const latencyWindow = 64

// ChannelMetrics is a snapshot of delivery counters for one channel.
type ChannelMetrics struct {
	Attempts   int64
	Sent       int64
	Failed     int64
	AvgLatency time.Duration
}

type channelStats struct {
	attempts  int64
	sent      int64
	failed    int64
	latencies [latencyWindow]time.Duration
	samples   int64
}

// Metrics tracks per-channel delivery counters and a rolling average of
// attempt latency. Safe for concurrent use.
type Metrics struct {
	mu    sync.Mutex
	stats map[notify.Channel]*channelStats
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[notify.Channel]*channelStats)}
}

// Record accounts one delivery attempt.
func (m *Metrics) Record(ch notify.Channel, status notify.Status, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.stats[ch]
	if !ok {
		st = &channelStats{}
		m.stats[ch] = st
	}

	st.attempts++
	switch status {
	case notify.StatusSent, notify.StatusDelivered:
		st.sent++
	case notify.StatusFailed, notify.StatusExpired:
		st.failed++
	}
	st.latencies[st.samples%latencyWindow] = latency
	st.samples++
}

// Snapshot returns the current counters per channel. The rolling average
// covers the most recent attempts only, so it reflects current provider
// health rather than lifetime history.
func (m *Metrics) Snapshot() map[notify.Channel]ChannelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[notify.Channel]ChannelMetrics, len(m.stats))
	for ch, st := range m.stats {
		n := min(st.samples, latencyWindow)
		var total time.Duration
		for i := int64(0); i < n; i++ {
			total += st.latencies[i]
		}
		cm := ChannelMetrics{
			Attempts: st.attempts,
			Sent:     st.sent,
			Failed:   st.failed,
		}
		if n > 0 {
			cm.AvgLatency = total / time.Duration(n)
		}
		out[ch] = cm
	}
	return out
}
