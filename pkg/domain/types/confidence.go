package types

// ConfidenceLevel is the qualitative confidence assigned to extracted items
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// IsValid checks if the confidence level is valid
func (c ConfidenceLevel) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Normalize returns the level, treating empty or unknown values as low
func (c ConfidenceLevel) Normalize() ConfidenceLevel {
	if !c.IsValid() {
		return ConfidenceLow
	}
	return c
}

// String returns the string representation of the confidence level
func (c ConfidenceLevel) String() string {
	return string(c)
}

// SegmentSource identifies which transcription path produced a segment
type SegmentSource string

const (
	// SourceStreaming marks provisional low-latency segments used only for
	// live display. Never persisted.
	SourceStreaming SegmentSource = "streaming"
	// SourceBatch marks authoritative segments committed to the session.
	SourceBatch SegmentSource = "batch"
)

// String returns the string representation of the segment source
func (s SegmentSource) String() string {
	return string(s)
}
