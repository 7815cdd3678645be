package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Severity classifies operational alerts. The order is meaningful:
// routing filters and escalation thresholds key off it.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.rank() >= 0
}

// AtLeast reports whether s is at or above the given severity.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Alert is one deduplicated operational condition. At most one unresolved
// alert exists per fingerprint; repeats increment Count and update
// LastSeen instead of creating new records.
type Alert struct {
	ID            string            `json:"id"`
	Fingerprint   string            `json:"fingerprint"`
	Severity      Severity          `json:"severity"`
	Category      string            `json:"category"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Count         int               `json:"count"`
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
	Escalated     bool              `json:"escalated"`
	Resolved      bool              `json:"resolved"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy    string            `json:"resolved_by,omitempty"`
	// ResolutionLatency is the time from first occurrence to resolution.
	ResolutionLatency time.Duration `json:"resolution_latency,omitempty"`
}

// Age returns how long the alert has been open.
func (a Alert) Age(now time.Time) time.Duration {
	return now.Sub(a.FirstSeen)
}

// Fingerprint derives the stable dedup key for an alert: identical
// (category, title, source) triples always collide, which is exactly what
// collapses an alert storm into one record.
func Fingerprint(category, title, source string) string {
	hash := sha256.Sum256([]byte(category + "|" + title + "|" + source))
	return hex.EncodeToString(hash[:8])
}
