package types

// ChunkStatus represents the processing state of an audio chunk
type ChunkStatus string

const (
	ChunkStatusPending      ChunkStatus = "PENDING"
	ChunkStatusTranscribing ChunkStatus = "TRANSCRIBING"
	ChunkStatusAnalyzed     ChunkStatus = "ANALYZED"
	ChunkStatusFailed       ChunkStatus = "FAILED"
)

// IsValid checks if the chunk status is valid
func (s ChunkStatus) IsValid() bool {
	switch s {
	case ChunkStatusPending,
		ChunkStatusTranscribing,
		ChunkStatusAnalyzed,
		ChunkStatusFailed:
		return true
	default:
		return false
	}
}

// IsResolved reports whether the chunk has finished processing. A resolved
// chunk must never be mutated again.
func (s ChunkStatus) IsResolved() bool {
	return s == ChunkStatusAnalyzed || s == ChunkStatusFailed
}

// String returns the string representation of the chunk status
func (s ChunkStatus) String() string {
	return string(s)
}
