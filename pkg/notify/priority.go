package notify

// Priority represents the notification priority level.
// The order is meaningful: retry and fallback behavior kicks in
// at PriorityHigh and above.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// AtLeast reports whether p is at or above the given priority.
func (p Priority) AtLeast(min Priority) bool {
	return p >= min
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}
